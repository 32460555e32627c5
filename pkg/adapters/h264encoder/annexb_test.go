package h264encoder

import (
	"bytes"
	"io"
	"testing"
)

// nal builds a single-byte-header NAL unit of the given type with
// payload bytes appended.
func nal(typ byte, payload ...byte) []byte {
	return append([]byte{typ & 0x1F}, payload...)
}

// annexB joins NAL units with 4-byte start codes.
func annexB(nalus ...[]byte) []byte {
	var buf bytes.Buffer
	for _, n := range nalus {
		buf.Write([]byte{0, 0, 0, 1})
		buf.Write(n)
	}
	return buf.Bytes()
}

func TestParseAnnexB(t *testing.T) {
	stream := annexB(nal(naluAUD, 0xF0), nal(naluSPS, 1, 2, 3), nal(naluPPS, 4))
	nalus := parseAnnexB(stream)
	if len(nalus) != 3 {
		t.Fatalf("expected 3 NAL units, got %d", len(nalus))
	}
	if nalus[0][0]&0x1F != naluAUD {
		t.Errorf("first NAL should be AUD, got type %d", nalus[0][0]&0x1F)
	}
	if !bytes.Equal(nalus[1], nal(naluSPS, 1, 2, 3)) {
		t.Errorf("SPS NAL mismatch: %v", nalus[1])
	}
}

func TestParseAnnexB_ThreeByteStartCodes(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 1})
	buf.Write(nal(naluIDR, 0xAA))
	buf.Write([]byte{0, 0, 1})
	buf.Write(nal(1, 0xBB))

	nalus := parseAnnexB(buf.Bytes())
	if len(nalus) != 2 {
		t.Fatalf("expected 2 NAL units, got %d", len(nalus))
	}
	if nalus[0][0]&0x1F != naluIDR {
		t.Errorf("expected IDR, got type %d", nalus[0][0]&0x1F)
	}
}

func TestAccessUnit_Keyframe(t *testing.T) {
	idr := &accessUnit{nalus: [][]byte{nal(naluAUD, 0x10), nal(naluIDR, 1)}}
	if !idr.keyframe() {
		t.Error("access unit with IDR slice should be a keyframe")
	}
	p := &accessUnit{nalus: [][]byte{nal(naluAUD, 0x30), nal(1, 1)}}
	if p.keyframe() {
		t.Error("access unit without IDR slice should not be a keyframe")
	}
}

func TestAccessUnit_ParameterSets(t *testing.T) {
	au := &accessUnit{nalus: [][]byte{
		nal(naluAUD, 0x10),
		nal(naluSPS, 0x42),
		nal(naluPPS, 0xCE),
		nal(naluIDR, 1),
	}}
	sps, pps := au.parameterSets()
	if sps == nil || sps[1] != 0x42 {
		t.Errorf("unexpected SPS: %v", sps)
	}
	if pps == nil || pps[1] != 0xCE {
		t.Errorf("unexpected PPS: %v", pps)
	}
}

func TestAccessUnit_AvccSample(t *testing.T) {
	slice := nal(naluIDR, 1, 2, 3)
	au := &accessUnit{nalus: [][]byte{
		nal(naluAUD, 0x10),
		nal(naluSPS, 0x42),
		nal(naluPPS, 0xCE),
		slice,
	}}

	sample := au.avccSample()
	// Delimiter and parameter sets are stripped; only the slice remains,
	// prefixed by its 4-byte length.
	want := append([]byte{0, 0, 0, byte(len(slice))}, slice...)
	if !bytes.Equal(sample, want) {
		t.Errorf("unexpected sample: %v, want %v", sample, want)
	}
}

func TestAUScanner(t *testing.T) {
	au1 := annexB(nal(naluAUD, 0x10), nal(naluSPS, 0x42), nal(naluPPS, 0xCE), nal(naluIDR, 1))
	au2 := annexB(nal(naluAUD, 0x30), nal(1, 2))
	au3 := annexB(nal(naluAUD, 0x30), nal(1, 3))

	var stream bytes.Buffer
	stream.Write(au1)
	stream.Write(au2)
	stream.Write(au3)

	s := newAUScanner(&stream)

	first, err := s.Next()
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if !first.keyframe() {
		t.Error("first access unit should be a keyframe")
	}
	if len(first.nalus) != 4 {
		t.Errorf("first access unit: expected 4 NAL units, got %d", len(first.nalus))
	}

	second, err := s.Next()
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if second.keyframe() {
		t.Error("second access unit should not be a keyframe")
	}

	third, err := s.Next()
	if err != nil {
		t.Fatalf("third Next: %v", err)
	}
	if len(third.nalus) != 2 {
		t.Errorf("third access unit: expected 2 NAL units, got %d", len(third.nalus))
	}

	if _, err := s.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after the final access unit, got %v", err)
	}
}

// slowReader delivers one byte per Read to exercise incremental
// buffering across start code boundaries.
type slowReader struct {
	data []byte
	pos  int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

func TestAUScanner_FragmentedReads(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(annexB(nal(naluAUD, 0x10), nal(naluIDR, 1, 2)))
	stream.Write(annexB(nal(naluAUD, 0x30), nal(1, 3, 4)))

	s := newAUScanner(&slowReader{data: stream.Bytes()})

	var count int
	for {
		au, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if len(au.nalus) != 2 {
			t.Errorf("access unit %d: expected 2 NAL units, got %d", count, len(au.nalus))
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 access units, got %d", count)
	}
}

func TestFindDelimiter_IgnoresNonAUDStartCodes(t *testing.T) {
	stream := annexB(nal(naluSPS, 0x42), nal(naluAUD, 0x10))
	off := findDelimiter(stream, 0)
	// The SPS start code must be skipped; the delimiter starts after the
	// SPS NAL.
	want := 4 + len(nal(naluSPS, 0x42))
	if off != want {
		t.Errorf("expected delimiter at %d, got %d", want, off)
	}
}
