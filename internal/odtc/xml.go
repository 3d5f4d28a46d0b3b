package odtc

import (
	"encoding/xml"
	"strconv"

	"prepdeck/internal/deck"
)

type xmlStep struct {
	XMLName     xml.Name `xml:"Step"`
	PlateauTemp float64  `xml:"plateauTemperature,attr"`
	PlateauTime int      `xml:"plateauTime,attr"`
	LidTemp     float64  `xml:"lidTemperature,attr"`
}

type xmlCycle struct {
	XMLName xml.Name  `xml:"Cycle"`
	Count   int       `xml:"count,attr"`
	Steps   []xmlStep `xml:"Step"`
}

type xmlPreMethod struct {
	XMLName   xml.Name `xml:"PreMethod"`
	BlockTemp float64  `xml:"blockTemperature,attr"`
	LidTemp   float64  `xml:"lidTemperature,attr"`
}

func toXMLStep(s Step) xmlStep {
	return xmlStep{PlateauTemp: s.PlateauTempC, PlateauTime: s.PlateauTimeS, LidTemp: s.LidTempC}
}

// MarshalXML writes the method in the cycler's upload format. A
// method with no steps is a configuration error.
func (m *Method) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if len(m.items) == 0 {
		return deck.NewConfigurationError(CodeEmptyMethod, "method %q has no steps", m.Name)
	}

	start.Name.Local = "Method"
	start.Attr = []xml.Attr{
		{Name: xml.Name{Local: "name"}, Value: m.Name},
		{Name: xml.Name{Local: "creator"}, Value: m.Creator},
	}
	if m.FluidQuantityUL > 0 {
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: "fluidQuantity"},
			Value: strconv.Itoa(m.FluidQuantityUL),
		})
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	if m.hasPre {
		if err := e.Encode(xmlPreMethod{BlockTemp: m.preBlockTempC, LidTemp: m.preLidTempC}); err != nil {
			return err
		}
	}

	stepsStart := xml.StartElement{Name: xml.Name{Local: "Steps"}}
	if err := e.EncodeToken(stepsStart); err != nil {
		return err
	}
	for _, it := range m.items {
		if it.step != nil {
			if err := e.Encode(toXMLStep(*it.step)); err != nil {
				return err
			}
			continue
		}
		c := xmlCycle{Count: it.cycle.Count}
		for _, s := range it.cycle.Steps {
			c.Steps = append(c.Steps, toXMLStep(s))
		}
		if err := e.Encode(c); err != nil {
			return err
		}
	}
	if err := e.EncodeToken(stepsStart.End()); err != nil {
		return err
	}

	return e.EncodeToken(start.End())
}

// XML renders the method as an indented document.
func (m *Method) XML() ([]byte, error) {
	return xml.MarshalIndent(m, "", "  ")
}
