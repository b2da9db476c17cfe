// param.go
//
// Typed access to a decoded hjson settings bundle
/*
Copyright 2021 Bruce Golden and Matt Spangler

Permission is hereby granted, free of charge, to any person obtaining a copy of
this software and associated documentation files (the "Software"), to deal in
the Software without restriction, including without limitation the rights to
use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
of the Software, and to permit persons to whom the Software is furnished to do
so, subject to the following conditions:
The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	hjson "github.com/hjson/hjson-go"
)

var (
	ErrMissingKey = errors.New("settings: key not found")
	ErrType       = errors.New("settings: wrong type")
)

// Param is one hjson object, name:value pairs
type Param map[string]interface{}

// Decode translates hjson text into a Param
func Decode(data []byte) (Param, error) {
	var p map[string]interface{}
	if err := hjson.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return Param(p), nil
}

func (p Param) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p Param) get(key string) (interface{}, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("%w: '%s:'", ErrMissingKey, key)
	}
	return v, nil
}

func typeErr(key string, v interface{}, want string) error {
	return fmt.Errorf("%w: '%s:' is %T, want %s", ErrType, key, v, want)
}

func (p Param) Float(key string) (float64, error) {
	v, err := p.get(key)
	if err != nil {
		return 0, err
	}
	return toFloat(key, v)
}

func toFloat(key string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, typeErr(key, v, "number")
		}
		return f, nil
	}
	return 0, typeErr(key, v, "number")
}

func (p Param) FloatOr(key string, def float64) (float64, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.Float(key)
}

func (p Param) Int(key string) (int, error) {
	f, err := p.Float(key)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, typeErr(key, f, "integer")
	}
	return int(f), nil
}

func (p Param) IntOr(key string, def int) (int, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.Int(key)
}

func (p Param) String(key string) (string, error) {
	v, err := p.get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeErr(key, v, "string")
	}
	return strings.TrimSpace(s), nil
}

func (p Param) StringOr(key, def string) (string, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.String(key)
}

func (p Param) Bool(key string) (bool, error) {
	v, err := p.get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeErr(key, v, "bool")
	}
	return b, nil
}

func (p Param) BoolOr(key string, def bool) (bool, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.Bool(key)
}

// List is an hjson array
func (p Param) List(key string) ([]interface{}, error) {
	v, err := p.get(key)
	if err != nil {
		return nil, err
	}
	l, ok := v.([]interface{})
	if !ok {
		return nil, typeErr(key, v, "array")
	}
	return l, nil
}

func (p Param) Floats(key string) ([]float64, error) {
	l, err := p.List(key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(l))
	for i, v := range l {
		if out[i], err = toFloat(fmt.Sprintf("%s[%d]", key, i), v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p Param) Strings(key string) ([]string, error) {
	l, err := p.List(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(l))
	for i, v := range l {
		s, ok := v.(string)
		if !ok {
			return nil, typeErr(fmt.Sprintf("%s[%d]", key, i), v, "string")
		}
		out[i] = strings.TrimSpace(s)
	}
	return out, nil
}

// Section is a nested hjson object
func (p Param) Section(key string) (Param, error) {
	v, err := p.get(key)
	if err != nil {
		return nil, err
	}
	return toParam(key, v)
}

func toParam(key string, v interface{}) (Param, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, typeErr(key, v, "object")
	}
	return Param(m), nil
}

// Sections is an array of hjson objects
func (p Param) Sections(key string) ([]Param, error) {
	l, err := p.List(key)
	if err != nil {
		return nil, err
	}
	out := make([]Param, len(l))
	for i, v := range l {
		if out[i], err = toParam(fmt.Sprintf("%s[%d]", key, i), v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Fields splits a comma separated row such as "office, 0.2, 4"
func Fields(row string, n int) ([]string, error) {
	s := strings.Split(row, ",")
	if len(s) != n {
		return nil, fmt.Errorf("%w: %q has %d fields, want %d", ErrType, row, len(s), n)
	}
	for i := range s {
		s[i] = strings.TrimSpace(s[i])
	}
	return s, nil
}

// FloatFields parses the fields of row after the first `skip` as numbers
func FloatFields(row string, n, skip int) ([]string, []float64, error) {
	s, err := Fields(row, n)
	if err != nil {
		return nil, nil, err
	}
	fs := make([]float64, 0, n-skip)
	for _, f := range s[skip:] {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %q in %q is not a number", ErrType, f, row)
		}
		fs = append(fs, x)
	}
	return s, fs, nil
}
