// Package testtables provides a small set of WMO table entries for tests.
package testtables

import (
	"sync"

	"github.com/sdifrance/gobufr/dtable"
	"github.com/sdifrance/gobufr/tables"
	"github.com/sdifrance/gobufr/vartable"
)

// YAML is a table file with a subset of WMO table B and D, version 13.
const YAML = `
variables:
  - {code: B01001, desc: WMO BLOCK NUMBER, unit: NUMERIC, scale: 0, ref: 0, bits: 7}
  - {code: B01002, desc: WMO STATION NUMBER, unit: NUMERIC, scale: 0, ref: 0, bits: 10}
  - {code: B01011, desc: SHIP OR MOBILE LAND STATION IDENTIFIER, unit: CCITTIA5, scale: 0, ref: 0, bits: 72}
  - {code: B01015, desc: STATION OR SITE NAME, unit: CCITTIA5, scale: 0, ref: 0, bits: 160}
  - {code: B02001, desc: TYPE OF STATION, unit: CODE TABLE, scale: 0, ref: 0, bits: 2}
  - {code: B04001, desc: YEAR, unit: A, scale: 0, ref: 0, bits: 12}
  - {code: B04002, desc: MONTH, unit: MON, scale: 0, ref: 0, bits: 4}
  - {code: B04003, desc: DAY, unit: D, scale: 0, ref: 0, bits: 6}
  - {code: B04004, desc: HOUR, unit: H, scale: 0, ref: 0, bits: 5}
  - {code: B04005, desc: MINUTE, unit: MIN, scale: 0, ref: 0, bits: 6}
  - {code: B05001, desc: LATITUDE (HIGH ACCURACY), unit: DEGREE, scale: 5, ref: -9000000, bits: 25}
  - {code: B06001, desc: LONGITUDE (HIGH ACCURACY), unit: DEGREE, scale: 5, ref: -18000000, bits: 26}
  - {code: B07030, desc: HEIGHT OF STATION GROUND ABOVE MEAN SEA LEVEL, unit: M, scale: 1, ref: -3000, bits: 17}
  - {code: B10004, desc: PRESSURE, unit: PA, scale: -1, ref: 0, bits: 14}
  - {code: B11001, desc: WIND DIRECTION, unit: DEGREE TRUE, scale: 0, ref: 0, bits: 9}
  - {code: B11002, desc: WIND SPEED, unit: M/S, scale: 1, ref: 0, bits: 12}
  - {code: B12101, desc: TEMPERATURE/AIR TEMPERATURE, unit: K, scale: 2, ref: 0, bits: 16}
  - {code: B13003, desc: RELATIVE HUMIDITY, unit: "%", scale: 0, ref: 0, bits: 7}
  - {code: B31000, desc: SHORT DELAYED DESCRIPTOR REPLICATION FACTOR, unit: NUMERIC, scale: 0, ref: 0, bits: 1}
  - {code: B31001, desc: DELAYED DESCRIPTOR REPLICATION FACTOR, unit: NUMERIC, scale: 0, ref: 0, bits: 8}
  - {code: B31002, desc: EXTENDED DELAYED DESCRIPTOR REPLICATION FACTOR, unit: NUMERIC, scale: 0, ref: 0, bits: 16, crex_digits: 4}
  - {code: B31031, desc: DATA PRESENT INDICATOR, unit: FLAG TABLE, scale: 0, ref: 0, bits: 1}
  - {code: B33002, desc: QUALITY INFORMATION, unit: CODE TABLE, scale: 0, ref: 0, bits: 2}
  - {code: B33007, desc: PER CENT CONFIDENCE, unit: "%", scale: 0, ref: 0, bits: 7}
sequences:
  D01001: [B01001, B01002]
  D01002: [D01001, B01015]
  D01011: [B04001, B04002, B04003]
  D01012: [B04004, B04005]
  D01013: [D01011, D01012]
`

// ID is the table id the tables are registered under by Registry.
var ID = tables.BufrID(0, 0, 13, 0)

// CrexID is the CREX table id the tables are registered under by Registry.
var CrexID = tables.CrexID(0, 13)

var (
	once sync.Once
	vt   *vartable.Table
	dt   *dtable.Table
)

// Tables returns the parsed tables. It panics if they do not parse.
func Tables() (*vartable.Table, *dtable.Table) {
	once.Do(func() {
		var err error
		vt, dt, err = tables.Parse(ID, []byte(YAML))
		if err != nil {
			panic(err)
		}
	})
	return vt, dt
}

// Registry returns a registry holding the tables under ID and CrexID, and
// reading no files.
func Registry() *tables.Registry {
	vt, dt := Tables()
	r := tables.NewRegistry("")
	r.Register(ID, vt, dt)
	r.Register(CrexID, vt, dt)
	return r
}
