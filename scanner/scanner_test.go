package scanner

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func tokens(t *testing.T, src string) []Token {
	t.Helper()
	s := New(strings.NewReader(src), Config{})
	var out []Token
	for {
		tok, err := s.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, tok)
	}
}

func TestScanBasicTokens(t *testing.T) {
	toks := tokens(t, "<< /Type /Page >> [ 1 2.5 true null ]")
	want := []TokenType{
		TokenDict, TokenName, TokenName, TokenKeyword,
		TokenArray, TokenNumber, TokenNumber, TokenBoolean, TokenNull, TokenKeyword,
	}
	if len(toks) != len(want) {
		t.Fatalf("token count = %d, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Fatalf("token %d type = %v, want %v", i, toks[i].Type, w)
		}
	}
	if toks[1].Value != "Type" || toks[2].Value != "Page" {
		t.Fatalf("name values: %v %v", toks[1].Value, toks[2].Value)
	}
	if toks[5].Value != int64(1) {
		t.Fatalf("integer value = %v", toks[5].Value)
	}
	if toks[6].Value != 2.5 {
		t.Fatalf("real value = %v", toks[6].Value)
	}
}

func TestScanRef(t *testing.T) {
	toks := tokens(t, "/Contents 12 0 R")
	if len(toks) != 2 || toks[1].Type != TokenRef {
		t.Fatalf("tokens = %+v", toks)
	}
	if r := toks[1].Value.(RefValue); r.Num != 12 || r.Gen != 0 {
		t.Fatalf("ref = %+v", r)
	}
}

func TestTwoNumbersAreNotARef(t *testing.T) {
	toks := tokens(t, "[ 10 20 ]")
	if len(toks) != 4 || toks[1].Type != TokenNumber || toks[2].Type != TokenNumber {
		t.Fatalf("tokens = %+v", toks)
	}
	if toks[2].Value != int64(20) {
		t.Fatalf("second number = %v", toks[2].Value)
	}
}

func TestScanLiteralStringEscapes(t *testing.T) {
	toks := tokens(t, `(a\(b\)c\n\101 (nested))`)
	if len(toks) != 1 || toks[0].Type != TokenString {
		t.Fatalf("tokens = %+v", toks)
	}
	got := toks[0].Value.([]byte)
	if string(got) != "a(b)c\nA (nested)" {
		t.Fatalf("string = %q", got)
	}
}

func TestScanHexString(t *testing.T) {
	toks := tokens(t, "<48 65 6C6C 6F7>")
	if len(toks) != 1 || toks[0].Type != TokenString {
		t.Fatalf("tokens = %+v", toks)
	}
	// odd nibble count pads with zero
	if got := toks[0].Value.([]byte); !bytes.Equal(got, []byte("Hellop")) {
		t.Fatalf("hex string = %q", got)
	}
}

func TestScanNameHexEscape(t *testing.T) {
	toks := tokens(t, "/A#20B")
	if toks[0].Value != "A B" {
		t.Fatalf("name = %q", toks[0].Value)
	}
}

func TestScanStreamPayload(t *testing.T) {
	src := "1 0 obj << /Length 5 >> stream\nhello\nendstream endobj"
	s := New(strings.NewReader(src), Config{})
	var payload []byte
	for {
		tok, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if tok.Type == TokenStream {
			payload = tok.Value.([]byte)
		}
	}
	if string(payload) != "hello" {
		t.Fatalf("stream payload = %q", payload)
	}
}

func TestStreamWithEmbeddedEndstreamText(t *testing.T) {
	// "endstream" without a whitespace boundary before it must not end the stream
	src := "stream\nxxendstreamyy\nendstream"
	s := New(strings.NewReader(src), Config{})
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if tok.Type != TokenStream || string(tok.Value.([]byte)) != "xxendstreamyy" {
		t.Fatalf("token = %v %q", tok.Type, tok.Value)
	}
}

func TestCommentsSkipped(t *testing.T) {
	toks := tokens(t, "% header comment\n42")
	if len(toks) != 1 || toks[0].Value != int64(42) {
		t.Fatalf("tokens = %+v", toks)
	}
}

func TestScanInlineImage(t *testing.T) {
	toks := tokens(t, "BI /W 1 /H 1 ID \xff\xfe\xfd\nEI Q")
	var data []byte
	for _, tok := range toks {
		if tok.Type == TokenInlineImage {
			data = tok.Value.([]byte)
		}
	}
	if !bytes.Equal(data, []byte{0xff, 0xfe, 0xfd}) {
		t.Fatalf("inline image data = %v", data)
	}
}
