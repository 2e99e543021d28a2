package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/takashi-oh/scankit/scanner"
)

// Parse reads every indirect object in the file with a single linear pass.
// Offsets from the cross-reference table are ignored: scanned documents are
// read whole anyway, and a linear walk also picks up objects that damaged or
// rewritten files fail to index. Objects stored in object streams are
// inflated later by the extractor once filters are available.
func Parse(data []byte) (*Document, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	tr := NewObjectReader(s)

	doc := &Document{
		Objects: make(map[ObjectRef]Object),
		Version: headerVersion(data),
	}

	for {
		tok, err := tr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case scanner.TokenKeyword:
			if tok.Value == "trailer" {
				if err := parseTrailer(tr, doc); err != nil {
					return nil, err
				}
			}
			continue
		case scanner.TokenNumber:
			// candidate "N G obj" start
		default:
			continue
		}

		num, ok := tokInt(tok)
		if !ok {
			continue
		}
		genTok, err := tr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		gen, ok := tokInt(genTok)
		if !ok || genTok.Type != scanner.TokenNumber {
			tr.unread(genTok)
			continue
		}
		kwTok, err := tr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if kwTok.Type != scanner.TokenKeyword || kwTok.Value != "obj" {
			tr.unread(kwTok)
			tr.unread(genTok)
			continue
		}

		obj, err := tr.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("parse object %d %d: %w", num, gen, err)
		}

		// A dictionary followed by a stream payload is a stream object.
		if dict, ok := obj.(*Dict); ok {
			if streamTok, err := tr.next(); err == nil {
				if streamTok.Type == scanner.TokenStream {
					obj = &Stream{Dict: dict, Data: tokBytes(streamTok)}
				} else {
					tr.unread(streamTok)
				}
			}
		}

		// Optional endobj.
		if t, err := tr.next(); err == nil {
			if t.Type != scanner.TokenKeyword || t.Value != "endobj" {
				tr.unread(t)
			}
		}

		doc.Objects[ObjectRef{Num: int(num), Gen: int(gen)}] = obj
	}

	if doc.Trailer == nil {
		// Cross-reference-stream files carry trailer keys on the XRef stream.
		for _, obj := range doc.Objects {
			stream, ok := obj.(*Stream)
			if !ok {
				continue
			}
			if typ, _ := stream.Dict.Get("Type"); typ == Name("XRef") {
				doc.Trailer = stream.Dict
				break
			}
		}
	}
	if doc.Trailer == nil {
		return nil, errors.New("trailer not found")
	}
	if len(doc.Objects) == 0 {
		return nil, errors.New("no indirect objects found")
	}
	return doc, nil
}

func parseTrailer(tr *ObjectReader, doc *Document) error {
	obj, err := tr.ReadObject()
	if err != nil {
		return fmt.Errorf("parse trailer: %w", err)
	}
	dict, ok := obj.(*Dict)
	if !ok {
		return fmt.Errorf("trailer is %T, want dictionary", obj)
	}
	// Later trailers win: with incremental updates the last one is current.
	doc.Trailer = dict
	return nil
}

func headerVersion(data []byte) string {
	const prefix = "%PDF-"
	if !bytes.HasPrefix(data, []byte(prefix)) {
		return ""
	}
	end := len(prefix)
	for end < len(data) && end < len(prefix)+8 {
		c := data[end]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		end++
	}
	return string(data[len(prefix):end])
}

// ObjectReader turns scanner tokens into Objects with one-token pushback.
// It is shared by the document parser, object-stream inflation, and
// content-stream operand parsing.
type ObjectReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func NewObjectReader(s scanner.Scanner) *ObjectReader { return &ObjectReader{s: s} }

// ReadObject parses the next complete object from the token source.
func (tr *ObjectReader) ReadObject() (Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return Name(tok.Value.(string)), nil
	case scanner.TokenNumber:
		switch v := tok.Value.(type) {
		case int64:
			return Integer(v), nil
		case float64:
			return Real(v), nil
		}
	case scanner.TokenBoolean:
		return Boolean(tok.Value.(bool)), nil
	case scanner.TokenNull:
		return Null{}, nil
	case scanner.TokenString:
		return String{Data: tokBytes(tok)}, nil
	case scanner.TokenRef:
		v := tok.Value.(scanner.RefValue)
		return Ref{Num: v.Num, Gen: v.Gen}, nil
	case scanner.TokenArray:
		return tr.readArray()
	case scanner.TokenDict:
		return tr.readDict()
	}
	return nil, fmt.Errorf("unexpected token %v", tok.Type)
}

func (tr *ObjectReader) readArray() (Object, error) {
	arr := &Array{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Value == "]" {
			return arr, nil
		}
		tr.unread(tok)
		item, err := tr.ReadObject()
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (tr *ObjectReader) readDict() (Object, error) {
	d := NewDict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Value == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name key in dict, got %v", tok.Type)
		}
		val, err := tr.ReadObject()
		if err != nil {
			return nil, err
		}
		d.Set(Name(tok.Value.(string)), val)
	}
}

// Next exposes the underlying token flow for callers that interleave
// operator keywords with operands (content streams).
func (tr *ObjectReader) Next() (scanner.Token, error) { return tr.next() }

// Unread pushes tok back so the next call to Next or ReadObject sees it.
func (tr *ObjectReader) Unread(tok scanner.Token) { tr.unread(tok) }

func (tr *ObjectReader) next() (scanner.Token, error) {
	if l := len(tr.buf); l > 0 {
		t := tr.buf[l-1]
		tr.buf = tr.buf[:l-1]
		return t, nil
	}
	return tr.s.Next()
}

func (tr *ObjectReader) unread(tok scanner.Token) { tr.buf = append(tr.buf, tok) }

func tokInt(tok scanner.Token) (int64, bool) {
	switch v := tok.Value.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func tokBytes(tok scanner.Token) []byte {
	b, ok := tok.Value.([]byte)
	if !ok {
		return nil
	}
	return append([]byte(nil), b...)
}
