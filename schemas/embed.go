// Package schemas carries the JSON schemas of the config file and the
// observer protocol.
package schemas

import "embed"

//go:embed *.schema.json
var FS embed.FS

const TuningSchema = "tuning.schema.json"
