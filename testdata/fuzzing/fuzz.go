// +build gofuzz

package fuzzing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xdg-go/binjson"
)

var ErrPanicked = errors.New("Panicked")
var ErrIgnore = errors.New("Ignore")

func FuzzJSON(data []byte) int {
	if shouldSkip(data) {
		return 0
	}

	jsonOut, jsonErr := unmarshalWithJson(data)
	if jsonErr == ErrIgnore || jsonErr == ErrPanicked {
		return 0
	}

	binOut, binErr := binjson.Unmarshal(data, nil)

	if binErr != nil && jsonErr == nil {
		fmt.Printf("input : %s\n", trim(string(data)))
		panic(fmt.Sprintf("binjson errors when json succeeds: %v", binErr))
	}

	if binErr == nil && jsonErr != nil {
		fmt.Printf("input : %s\n", trim(string(data)))
		panic(fmt.Sprintf("binjson succeeds when json errors: %v", jsonErr))
	}

	if binErr != nil {
		return 0
	}

	// The binary document must load and read back as what encoding/json
	// saw, keys sorted and duplicates resolved to the last value.
	v, err := binjson.Load(binOut)
	if err != nil {
		fmt.Printf("input : %s\n", trim(string(data)))
		panic(fmt.Sprintf("binjson output doesn't load: %v", err))
	}
	got, err := json.Marshal(v.ToJSON())
	if err != nil {
		panic(err)
	}
	want, err := json.Marshal(jsonOut)
	if err != nil {
		panic(err)
	}
	if !bytes.Equal(got, want) {
		fmt.Printf("binjson: %s\n", trim(string(got)))
		fmt.Printf("json   : %s\n", trim(string(want)))
		panic("not equal")
	}

	return 1
}

// FuzzLoad feeds arbitrary bytes to the validator.  Whatever it accepts
// must be safe to read in full.
func FuzzLoad(data []byte) int {
	v, err := binjson.Load(data)
	if err != nil {
		return 0
	}
	_ = v.ToJSON()
	if v.Kind() == binjson.KindObject {
		o := v.ToObject()
		for _, k := range o.Keys() {
			if !o.Contains(k) {
				panic(fmt.Sprintf("key %q listed but not found", k))
			}
		}
		o.Release()
	}
	v.Release()
	return 1
}

func unmarshalWithJson(data []byte) (out map[string]any, err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = ErrPanicked
		}
	}()

	jsonErr := json.Unmarshal(data, &out)
	if jsonErr != nil && strings.Contains(jsonErr.Error(), "after top-level value") {
		return nil, ErrIgnore
	}

	return out, jsonErr
}

func trim(s string) string {
	if len(s) < 160 {
		return s
	}

	return s[0:160] + "..."
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}
var objectRE = regexp.MustCompile(`^\s*\{`)

func shouldSkip(data []byte) bool {
	if len(data) > 2 && bytes.Equal(data[0:3], utf8BOM) {
		// encoding/json doens't support UTF-8 BOM
		return true
	}

	if !objectRE.Match(data) {
		// Unmarshal only supports a top level object.  Ignore array framing
		// for fuzz testing.
		return true
	}

	return false
}
