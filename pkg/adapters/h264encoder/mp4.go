package h264encoder

import (
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"
)

// mp4Writer appends a fragmented MP4/MOV container to an output
// stream: ftyp and init moov once the parameter sets are known, then
// one moof/mdat pair per sample. Writing per sample keeps the file
// growing while encoding runs and means an aborted run has cost
// nothing beyond what is already on disk.
type mp4Writer struct {
	w         io.Writer
	width     int
	height    int
	timescale uint32
	container string

	trackID     uint32
	seqNr       uint32
	initWritten bool
}

func newMP4Writer(w io.Writer, width, height int, timescale uint32, container string) *mp4Writer {
	return &mp4Writer{
		w:         w,
		width:     width,
		height:    height,
		timescale: timescale,
		container: container,
		trackID:   1,
		seqNr:     1,
	}
}

// writeInit writes ftyp and the init segment. Must be called once,
// before the first sample, with the SPS and PPS from the bitstream.
func (m *mp4Writer) writeInit(sps, pps []byte) error {
	var ftyp *mp4.FtypBox
	if m.container == "mov" {
		// MOV output is still fragmented, which the QuickTime spec does
		// not cover; older Apple players may reject it. isom is listed
		// as a compatible brand so such players can fall back to the
		// ISO interpretation. ffmpeg, VLC and modern AVFoundation all
		// accept fragmented qt files.
		ftyp = mp4.NewFtyp("qt  ", 0x200, []string{"qt  ", "isom"})
	} else {
		ftyp = mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	}
	if err := ftyp.Encode(m.w); err != nil {
		return fmt.Errorf("encode ftyp: %w", err)
	}

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(m.timescale, "video", "en")
	trak := init.Moov.Trak

	avcC, err := mp4.CreateAvcC([][]byte{sps}, [][]byte{pps}, true)
	if err != nil {
		return fmt.Errorf("create avcC: %w", err)
	}
	avc1 := mp4.CreateVisualSampleEntryBox("avc1", uint16(m.width), uint16(m.height), avcC)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(avc1)

	trak.Tkhd.Width = mp4.Fixed32(m.width << 16)
	trak.Tkhd.Height = mp4.Fixed32(m.height << 16)

	if err := init.Moov.Encode(m.w); err != nil {
		return fmt.Errorf("encode moov: %w", err)
	}
	m.initWritten = true
	return nil
}

// writeSample appends one sample as its own fragment. pts and dur are
// in timescale units; pts values must be non-decreasing.
func (m *mp4Writer) writeSample(avccData []byte, pts, dur int64, keyframe bool) error {
	if !m.initWritten {
		return ErrNotOpen
	}
	frag, err := mp4.CreateFragment(m.seqNr, m.trackID)
	if err != nil {
		return fmt.Errorf("create fragment: %w", err)
	}
	flags := mp4.NonSyncSampleFlags
	if keyframe {
		flags = mp4.SyncSampleFlags
	}
	frag.AddFullSample(mp4.FullSample{
		Sample: mp4.Sample{
			Flags: flags,
			Size:  uint32(len(avccData)),
			Dur:   uint32(dur),
		},
		DecodeTime: uint64(pts),
		Data:       avccData,
	})
	if err := frag.Encode(m.w); err != nil {
		return fmt.Errorf("encode fragment: %w", err)
	}
	m.seqNr++
	return nil
}
