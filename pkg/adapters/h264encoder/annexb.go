package h264encoder

import (
	"io"
)

// NAL unit types of interest.
const (
	naluIDR = 5
	naluSPS = 7
	naluPPS = 8
	naluAUD = 9
)

// accessUnit is one coded picture: its NAL units in bitstream order.
type accessUnit struct {
	nalus [][]byte
}

// keyframe reports whether the access unit contains an IDR slice.
func (au *accessUnit) keyframe() bool {
	for _, n := range au.nalus {
		if len(n) > 0 && n[0]&0x1F == naluIDR {
			return true
		}
	}
	return false
}

// parameterSets returns the SPS and PPS NAL units if present.
func (au *accessUnit) parameterSets() (sps, pps []byte) {
	for _, n := range au.nalus {
		if len(n) == 0 {
			continue
		}
		switch n[0] & 0x1F {
		case naluSPS:
			if sps == nil {
				sps = append([]byte(nil), n...)
			}
		case naluPPS:
			if pps == nil {
				pps = append([]byte(nil), n...)
			}
		}
	}
	return sps, pps
}

// avccSample converts the access unit to AVCC sample data: 4-byte
// length-prefixed NAL units, excluding delimiters and parameter sets
// (those live in the avcC box).
func (au *accessUnit) avccSample() []byte {
	total := 0
	for _, n := range au.nalus {
		if skipInSample(n) {
			continue
		}
		total += 4 + len(n)
	}
	out := make([]byte, 0, total)
	for _, n := range au.nalus {
		if skipInSample(n) {
			continue
		}
		l := len(n)
		out = append(out, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
		out = append(out, n...)
	}
	return out
}

func skipInSample(nalu []byte) bool {
	if len(nalu) == 0 {
		return true
	}
	switch nalu[0] & 0x1F {
	case naluAUD, naluSPS, naluPPS:
		return true
	}
	return false
}

// auScanner incrementally splits a raw Annex B byte stream into access
// units. The encoder runs x264 with aud=1, so every access unit starts
// with an access unit delimiter (NAL type 9); the scanner cuts the
// stream at those delimiters.
type auScanner struct {
	r    io.Reader
	buf  []byte
	read []byte
	eof  bool
}

func newAUScanner(r io.Reader) *auScanner {
	return &auScanner{r: r, read: make([]byte, 64*1024)}
}

// Next returns the next complete access unit, or io.EOF after the
// final one has been delivered.
func (s *auScanner) Next() (*accessUnit, error) {
	for {
		if au, rest, ok := cutAccessUnit(s.buf); ok {
			s.buf = rest
			return au, nil
		}
		if s.eof {
			if au := lastAccessUnit(s.buf); au != nil {
				s.buf = nil
				return au, nil
			}
			return nil, io.EOF
		}
		n, err := s.r.Read(s.read)
		if n > 0 {
			s.buf = append(s.buf, s.read[:n]...)
		}
		if err == io.EOF {
			s.eof = true
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// cutAccessUnit extracts the leading complete access unit from data:
// everything from the first delimiter up to (not including) the second.
func cutAccessUnit(data []byte) (*accessUnit, []byte, bool) {
	first := findDelimiter(data, 0)
	if first < 0 {
		return nil, data, false
	}
	second := findDelimiter(data, first+4)
	if second < 0 {
		return nil, data, false
	}
	return &accessUnit{nalus: parseAnnexB(data[first:second])}, data[second:], true
}

// lastAccessUnit extracts the trailing access unit at end of stream.
func lastAccessUnit(data []byte) *accessUnit {
	first := findDelimiter(data, 0)
	if first < 0 {
		return nil
	}
	nalus := parseAnnexB(data[first:])
	if len(nalus) == 0 {
		return nil
	}
	return &accessUnit{nalus: nalus}
}

// findDelimiter returns the offset of the next start code that begins
// an access unit delimiter NAL, or -1.
func findDelimiter(data []byte, from int) int {
	for i := from; i+3 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 {
			continue
		}
		var nalOff int
		if data[i+2] == 1 {
			nalOff = i + 3
		} else if i+4 < len(data) && data[i+2] == 0 && data[i+3] == 1 {
			nalOff = i + 4
		} else {
			continue
		}
		if nalOff < len(data) && data[nalOff]&0x1F == naluAUD {
			return i
		}
	}
	return -1
}

// parseAnnexB splits an Annex B byte stream into individual NAL units.
func parseAnnexB(data []byte) [][]byte {
	var nalus [][]byte
	start := -1
	i := 0
	for i < len(data) {
		if i+2 < len(data) && data[i] == 0 && data[i+1] == 0 {
			startCodeLen := 0
			if data[i+2] == 1 {
				startCodeLen = 3
			} else if i+3 < len(data) && data[i+2] == 0 && data[i+3] == 1 {
				startCodeLen = 4
			}
			if startCodeLen > 0 {
				if start >= 0 && i > start {
					nalus = append(nalus, data[start:i])
				}
				i += startCodeLen
				start = i
				continue
			}
		}
		i++
	}
	if start >= 0 && start < len(data) {
		nalus = append(nalus, data[start:])
	}
	return nalus
}
