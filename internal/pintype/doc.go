/*
Package pintype maps the data types and values carried by board pins onto
go-cty.

Pin data types are written as small type expressions:

	string
	number
	bool
	any
	list(number)
	map(string)
	set(bool)
	object({ name = string, tags = list(string) })

Default values and run payloads travel as JSON and are decoded against the
declared type. Node behaviors read and write plain Go values; the helpers in
this package convert between those and cty.Value.
*/
package pintype
