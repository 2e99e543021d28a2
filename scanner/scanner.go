// Package scanner tokenizes PDF syntax from an io.ReaderAt. It feeds both the
// document parser and content-stream text extraction, so it understands the
// object-level tokens (names, strings, numbers, refs, dicts, arrays, streams)
// as well as the content-stream-only inline image construct.
package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"unicode"
)

type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenArray                        // '['
	TokenName                         // '/Name'
	TokenString                       // literal or hex string
	TokenNumber                       // numeric value
	TokenBoolean                      // true/false
	TokenNull                         // null
	TokenRef                          // indirect ref '5 0 R'
	TokenStream                       // stream payload up to endstream
	TokenInlineImage                  // data between ID and EI (content streams)
	TokenKeyword                      // other keywords (obj, endobj, >>, ], operators)
)

type Token struct {
	Type  TokenType
	Value interface{}
	Pos   int64
}

// RefValue is the payload of a TokenRef token.
type RefValue struct{ Num, Gen int }

type Scanner interface {
	Next() (Token, error)
}

type Config struct {
	// WindowSize controls how much data is pulled from the reader per load.
	WindowSize int64
	// MaxStreamScan bounds the forward search for an endstream marker.
	// Zero means unbounded.
	MaxStreamScan int64
}

// lexer incrementally buffers PDF data from a ReaderAt in fixed-size windows.
// Malformed constructs (unterminated strings, missing endstream) are tolerated
// by emitting whatever data was collected; the single-pass assembly pipeline
// has no use for configurable recovery policies.
type lexer struct {
	reader io.ReaderAt
	data   []byte
	pos    int64
	cfg    Config
	eof    bool
}

func New(r io.ReaderAt, cfg Config) Scanner {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 64 * 1024
	}
	return &lexer{reader: r, cfg: cfg}
}

func (s *lexer) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		return Token{}, err
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peekAhead(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Value: "<<", Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Value: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Value: string(c), Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Value: "[", Pos: start}, nil
	case ']':
		s.pos++
		return Token{Type: TokenKeyword, Value: "]", Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isNumberStart(c) {
		return s.scanNumberOrRef()
	}
	if isAlpha(c) {
		return s.scanKeyword()
	}
	s.pos++
	return Token{Type: TokenKeyword, Value: string(c), Pos: start}, nil
}

func (s *lexer) skipWSAndComments() error {
	for {
		if err := s.ensure(s.pos); err != nil {
			return err
		}
		if s.pos >= int64(len(s.data)) {
			return io.EOF
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for {
				s.pos++
				if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				if s.pos >= int64(len(s.data)) {
					return io.EOF
				}
				if isEOL(s.data[s.pos]) {
					break
				}
			}
			continue
		}
		return nil
	}
}

func (s *lexer) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *lexer) loadMore() error {
	buf := make([]byte, s.cfg.WindowSize)
	n, err := s.reader.ReadAt(buf, int64(len(s.data)))
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if err == io.EOF || n == 0 {
		s.eof = true
		return nil
	}
	return err
}

func (s *lexer) peekAhead(n int64) byte {
	if err := s.ensure(s.pos + n); err != nil {
		return 0
	}
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *lexer) scanName() (Token, error) {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' { // hex escape in name
			s.pos++
			a := s.hexNibble()
			b := s.hexNibble()
			out.WriteByte((a << 4) | b)
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Value: out.String(), Pos: start}, nil
}

func (s *lexer) hexNibble() byte {
	if s.ensure(s.pos) != nil || s.pos >= int64(len(s.data)) {
		return 0
	}
	c := s.data[s.pos]
	s.pos++
	return fromHex(c)
}

func (s *lexer) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break // unterminated; emit what we have
		}
		c := s.data[s.pos]
		if c == '\\' {
			s.pos++
			if s.ensure(s.pos) != nil || s.pos >= int64(len(s.data)) {
				break
			}
			esc := s.data[s.pos]
			// Line continuation: backslash followed by EOL is dropped.
			if esc == '\r' {
				s.pos++
				if s.ensure(s.pos) == nil && s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
				continue
			}
			if esc == '\n' {
				s.pos++
				continue
			}
			if esc >= '0' && esc <= '7' { // octal escape, up to 3 digits
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2; k++ {
					if s.ensure(s.pos) != nil || s.pos >= int64(len(s.data)) {
						break
					}
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = (val << 3) + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
				continue
			}
			buf.WriteByte(translateEscape(esc))
			s.pos++
			continue
		}
		if c == '(' {
			depth++
		}
		if c == ')' {
			depth--
			if depth == 0 {
				s.pos++
				break
			}
		}
		buf.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenString, Value: buf.Bytes(), Pos: start}, nil
}

func (s *lexer) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var hexbuf []byte
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if c == '>' {
			s.pos++
			break
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		hexbuf = append(hexbuf, c)
		s.pos++
	}
	if len(hexbuf)%2 == 1 { // odd nibble count pads with 0
		hexbuf = append(hexbuf, '0')
	}
	out := make([]byte, 0, len(hexbuf)/2)
	for i := 0; i < len(hexbuf); i += 2 {
		out = append(out, (fromHex(hexbuf[i])<<4)|fromHex(hexbuf[i+1]))
	}
	return Token{Type: TokenString, Value: out, Pos: start}, nil
}

// scanStream consumes bytes following the stream keyword up to the next
// endstream marker that sits on a whitespace boundary.
func (s *lexer) scanStream(start int64) (Token, error) {
	if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
		return Token{}, err
	}
	// PDF 7.3.8: the stream keyword is followed by an EOL before data.
	if s.pos < int64(len(s.data)) {
		if s.data[s.pos] == '\r' {
			s.pos++
			if s.ensure(s.pos) == nil && s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
				s.pos++
			}
		} else if s.data[s.pos] == '\n' {
			s.pos++
		}
	}
	dataStart := s.pos
	needle := []byte("endstream")
	idx := int64(-1)
	for i := dataStart; ; i++ {
		if err := s.ensure(i + int64(len(needle)) - 1); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if i+int64(len(needle)) > int64(len(s.data)) {
			break
		}
		if s.cfg.MaxStreamScan > 0 && i-dataStart > s.cfg.MaxStreamScan {
			break
		}
		if s.data[i] != 'e' || !bytes.Equal(s.data[i:i+int64(len(needle))], needle) {
			continue
		}
		prevOK := i == dataStart || isWhitespace(s.data[i-1])
		followOK := i+int64(len(needle)) >= int64(len(s.data)) || isDelimiter(s.data[i+int64(len(needle))])
		if prevOK && followOK {
			idx = i
			break
		}
	}
	if idx < 0 {
		payload := append([]byte(nil), s.data[dataStart:]...)
		s.pos = int64(len(s.data))
		return Token{Type: TokenStream, Value: payload, Pos: start}, nil
	}
	end := idx
	// Trim the EOL that separates data from the marker.
	if end > dataStart && s.data[end-1] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	payload := append([]byte(nil), s.data[dataStart:end]...)
	s.pos = idx + int64(len(needle))
	return Token{Type: TokenStream, Value: payload, Pos: start}, nil
}

// scanInlineImage consumes bytes after the ID keyword until an EI delimiter
// preceded by a line break.
func (s *lexer) scanInlineImage(start int64) (Token, error) {
	if err := s.ensure(s.pos); err != nil {
		return Token{}, err
	}
	if s.pos < int64(len(s.data)) && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
	dataStart := s.pos
	for {
		if err := s.ensure(s.pos + 2); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos+1 >= int64(len(s.data)) {
			return Token{}, errors.New("unterminated inline image")
		}
		if s.data[s.pos] == 'E' && s.data[s.pos+1] == 'I' {
			breakBefore := s.pos > dataStart && isWhitespace(s.data[s.pos-1])
			afterOK := s.pos+2 >= int64(len(s.data)) || isDelimiter(s.data[s.pos+2])
			if breakBefore && afterOK {
				end := s.pos
				// The EOL separating data from EI is not image data.
				if end > dataStart && s.data[end-1] == '\n' {
					end--
				}
				if end > dataStart && s.data[end-1] == '\r' {
					end--
				}
				payload := append([]byte(nil), s.data[dataStart:end]...)
				s.pos += 2
				return Token{Type: TokenInlineImage, Value: payload, Pos: start}, nil
			}
		}
		s.pos++
	}
}

func (s *lexer) scanKeyword() (Token, error) {
	start := s.pos
	var buf bytes.Buffer
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if s.pos >= int64(len(s.data)) || isDelimiter(s.data[s.pos]) {
			break
		}
		buf.WriteByte(s.data[s.pos])
		s.pos++
	}
	kw := buf.String()
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Value: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Value: nil, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	case "ID":
		return s.scanInlineImage(start)
	default:
		return Token{Type: TokenKeyword, Value: kw, Pos: start}, nil
	}
}

func (s *lexer) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1 := s.scanNumberString()
	if num1 == "" {
		return Token{}, errors.New("invalid number")
	}
	s.skipWSAndComments()
	secondStart := s.pos
	num2 := s.scanNumberString()
	if num2 != "" {
		s.skipWSAndComments()
		if s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' &&
			(s.pos+1 >= int64(len(s.data)) || isDelimiter(s.peekAhead(1))) {
			s.pos++
			n1, _ := strconv.Atoi(num1)
			n2, _ := strconv.Atoi(num2)
			return Token{Type: TokenRef, Value: RefValue{Num: n1, Gen: n2}, Pos: start}, nil
		}
		// Not a ref; the second number is re-read by the caller.
		s.pos = secondStart
	}
	if i, err := strconv.ParseInt(num1, 10, 64); err == nil {
		return Token{Type: TokenNumber, Value: i, Pos: start}, nil
	}
	f, err := strconv.ParseFloat(num1, 64)
	if err != nil {
		return Token{}, err
	}
	return Token{Type: TokenNumber, Value: f, Pos: start}, nil
}

func (s *lexer) scanNumberString() string {
	start := s.pos
	var buf bytes.Buffer
	seenDigit := false
	for {
		if err := s.ensure(s.pos); err != nil && !errors.Is(err, io.EOF) {
			return ""
		}
		if s.pos >= int64(len(s.data)) {
			break
		}
		c := s.data[s.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			buf.WriteByte(c)
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return buf.String()
}

func isNumberStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }
func isAlpha(c byte) bool       { return unicode.IsLetter(rune(c)) }

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}
