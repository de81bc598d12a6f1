// Package printing holds the print settings of exported quotation documents:
// paper size, orientation and margins.
package printing
