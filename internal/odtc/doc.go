// Package odtc builds thermal cycler method files.
//
// A Method is an ordered sequence of temperature steps with a
// pre-method block/lid conditioning stage. Methods marshal to the
// vendor XML format the cycler executes; the instrument controller
// refers to them by name after upload.
package odtc
