package writer

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/takashi-oh/scankit/pdf"
)

// serializeObject renders one indirect object including obj/endobj framing.
func serializeObject(ref pdf.ObjectRef, obj pdf.Object) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	serializeValue(&buf, obj)
	buf.WriteString("\nendobj\n")
	return buf.Bytes()
}

func serializeValue(buf *bytes.Buffer, obj pdf.Object) {
	switch v := obj.(type) {
	case pdf.Name:
		serializeName(buf, v)
	case pdf.Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case pdf.Real:
		buf.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 64))
	case pdf.Boolean:
		buf.WriteString(strconv.FormatBool(bool(v)))
	case pdf.Null:
		buf.WriteString("null")
	case pdf.String:
		serializeString(buf, v)
	case pdf.Ref:
		fmt.Fprintf(buf, "%d %d R", v.Num, v.Gen)
	case *pdf.Array:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			serializeValue(buf, item)
		}
		buf.WriteByte(']')
	case *pdf.Dict:
		serializeDict(buf, v)
	case *pdf.Stream:
		// The stream dictionary's Length is authoritative on the wire.
		v.Dict.Set("Length", pdf.Integer(len(v.Data)))
		serializeDict(buf, v.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	default:
		buf.WriteString("null")
	}
}

func serializeDict(buf *bytes.Buffer, d *pdf.Dict) {
	buf.WriteString("<<")
	for i, key := range d.Keys() {
		if i > 0 {
			buf.WriteByte(' ')
		}
		serializeName(buf, key)
		buf.WriteByte(' ')
		val, _ := d.Get(key)
		serializeValue(buf, val)
	}
	buf.WriteString(">>")
}

// serializeName hex-escapes delimiter and non-regular bytes per PDF 7.3.5.
func serializeName(buf *bytes.Buffer, n pdf.Name) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c <= 0x20 || c >= 0x7f || c == '#' || isNameDelimiter(c) {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}

func isNameDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// serializeString writes mostly-text strings in literal form with escapes and
// binary-heavy strings in hex form.
func serializeString(buf *bytes.Buffer, s pdf.String) {
	if s.Hex || isBinary(s.Data) {
		buf.WriteByte('<')
		for _, c := range s.Data {
			fmt.Fprintf(buf, "%02X", c)
		}
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, c := range s.Data {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

func isBinary(data []byte) bool {
	nonPrintable := 0
	for _, c := range data {
		if (c < 0x20 && c != '\n' && c != '\r' && c != '\t') || c >= 0x7f {
			nonPrintable++
		}
	}
	return nonPrintable*4 > len(data)
}
