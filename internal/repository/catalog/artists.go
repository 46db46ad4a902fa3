package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Artist is one id/name pair from the songs table.
type Artist struct {
	ID   string
	Name string
}

var errArtists = errors.New("malformed artists literal")

// ParseArtists reads a dict literal of string pairs such as
// {'3TVXtAsR1Inumwj472S9r4': 'Drake', "id2": "Future"}.
// Pairs come back in source order; the first is the primary artist.
// The text is only parsed, never evaluated.
func ParseArtists(s string) ([]Artist, error) {
	p := &artistParser{runes: []rune(s)}
	p.readChar()

	artists, err := p.parseDict()
	if err != nil {
		return nil, fmt.Errorf("%w at offset %d: %w", errArtists, p.pos, err)
	}
	if len(artists) == 0 {
		return nil, fmt.Errorf("%w: no artists", errArtists)
	}
	return artists, nil
}

type artistParser struct {
	runes   []rune
	pos     int
	readPos int
	ch      rune
	eof     bool
}

func (p *artistParser) readChar() {
	if p.readPos >= len(p.runes) {
		p.ch = 0
		p.eof = true
	} else {
		p.ch = p.runes[p.readPos]
	}
	p.pos = p.readPos
	p.readPos++
}

func (p *artistParser) skipWhitespace() {
	for !p.eof && (p.ch == ' ' || p.ch == '\t' || p.ch == '\n' || p.ch == '\r') {
		p.readChar()
	}
}

func (p *artistParser) expect(r rune) error {
	p.skipWhitespace()
	if p.eof || p.ch != r {
		return fmt.Errorf("expected %q, got %s", r, p.describe())
	}
	p.readChar()
	return nil
}

func (p *artistParser) describe() string {
	if p.eof {
		return "end of input"
	}
	return strconv.QuoteRune(p.ch)
}

// parseDict: '{' [ pair { ',' pair } [ ',' ] ] '}' EOF
func (p *artistParser) parseDict() ([]Artist, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}

	var out []Artist
	for {
		p.skipWhitespace()
		if !p.eof && p.ch == '}' {
			p.readChar()
			break
		}

		key, err := p.parseString()
		if err != nil {
			return nil, fmt.Errorf("key: %w", err)
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		val, err := p.parseString()
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		out = append(out, Artist{ID: key, Name: val})

		p.skipWhitespace()
		switch {
		case !p.eof && p.ch == ',':
			p.readChar()
		case !p.eof && p.ch == '}':
			p.readChar()
			return out, p.end()
		default:
			return nil, fmt.Errorf("expected ',' or '}', got %s", p.describe())
		}
	}
	return out, p.end()
}

func (p *artistParser) end() error {
	p.skipWhitespace()
	if !p.eof {
		return fmt.Errorf("trailing input %s", p.describe())
	}
	return nil
}

func (p *artistParser) parseString() (string, error) {
	p.skipWhitespace()
	if p.eof || (p.ch != '\'' && p.ch != '"') {
		return "", fmt.Errorf("expected quoted string, got %s", p.describe())
	}
	quote := p.ch
	p.readChar()

	var b strings.Builder
	for {
		if p.eof {
			return "", errors.New("unterminated string")
		}
		switch p.ch {
		case quote:
			p.readChar()
			return b.String(), nil
		case '\n':
			return "", errors.New("newline in string")
		case '\\':
			p.readChar()
			if err := p.readEscape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteRune(p.ch)
			p.readChar()
		}
	}
}

// readEscape consumes the character(s) after a backslash.
// Unknown escapes keep the backslash, as the literal syntax does.
func (p *artistParser) readEscape(b *strings.Builder) error {
	if p.eof {
		return errors.New("unterminated escape")
	}
	switch p.ch {
	case '\\', '\'', '"':
		b.WriteRune(p.ch)
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'x':
		return p.readHex(b, 2)
	case 'u':
		return p.readHex(b, 4)
	case 'U':
		return p.readHex(b, 8)
	default:
		b.WriteByte('\\')
		b.WriteRune(p.ch)
	}
	p.readChar()
	return nil
}

func (p *artistParser) readHex(b *strings.Builder, n int) error {
	p.readChar()
	var digits strings.Builder
	for range n {
		if p.eof {
			return errors.New("short hex escape")
		}
		digits.WriteRune(p.ch)
		p.readChar()
	}
	code, err := strconv.ParseUint(digits.String(), 16, 32)
	if err != nil {
		return fmt.Errorf("bad hex escape %q", digits.String())
	}
	b.WriteRune(rune(code))
	return nil
}
