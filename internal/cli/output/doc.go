// Package output renders tokstash-cli results.
//
// Three formats are supported: table (KEY/VALUE rows via text/tabwriter),
// json (indented) and yaml (gopkg.in/yaml.v3). Payload maps are printed
// with sorted keys so output is stable for scripting.
package output
