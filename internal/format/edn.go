package format

import (
	"bytes"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var keywordRe = regexp.MustCompile(`^[A-Za-z*+!_?<>=-][A-Za-z0-9*+!_?<>=.-]*$`)

// WriteEDN writes an EDN rendition of v. Map keys that are valid EDN symbols become keywords,
// other keys stay strings.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	e := ednEncoder{buf: &buf, pretty: pretty}
	e.value(x, 0)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

type ednEncoder struct {
	buf    *bytes.Buffer
	pretty bool
}

func (e ednEncoder) value(v any, level int) {
	switch t := v.(type) {
	case nil:
		e.buf.WriteString("nil")
	case bool:
		e.buf.WriteString(strconv.FormatBool(t))
	case string:
		e.buf.WriteString(strconv.Quote(t))
	case int64:
		e.buf.WriteString(strconv.FormatInt(t, 10))
	case float64:
		e.buf.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case []any:
		e.seq('[', ']', len(t), level, func(i int) { e.value(t[i], level+1) })
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.seq('{', '}', len(keys), level, func(i int) {
			e.key(keys[i])
			e.buf.WriteByte(' ')
			e.value(t[keys[i]], level+1)
		})
	default:
		e.buf.WriteString(strconv.Quote("?"))
	}
}

func (e ednEncoder) key(k string) {
	if keywordRe.MatchString(k) {
		e.buf.WriteByte(':')
		e.buf.WriteString(k)
		return
	}
	e.buf.WriteString(strconv.Quote(k))
}

func (e ednEncoder) seq(start, end byte, n, level int, item func(i int)) {
	e.buf.WriteByte(start)
	if n == 0 {
		e.buf.WriteByte(end)
		return
	}
	for i := 0; i < n; i++ {
		switch {
		case e.pretty:
			e.buf.WriteByte('\n')
			e.buf.WriteString(strings.Repeat("  ", level+1))
		case i > 0:
			e.buf.WriteByte(' ')
		}
		item(i)
	}
	if e.pretty {
		e.buf.WriteByte('\n')
		e.buf.WriteString(strings.Repeat("  ", level))
	}
	e.buf.WriteByte(end)
}
