// Package quotation contains the quotation document model.
// A Quotation is an immutable value: header metadata plus an ordered list of
// categories, each owning an ordered list of tasks. Every edit returns a new
// Quotation or a typed error and leaves the receiver untouched, so a
// snapshot handed to estimation, layout or export can never change under it.
package quotation
