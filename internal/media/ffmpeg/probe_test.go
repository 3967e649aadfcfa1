package ffmpeg

import (
	"testing"
)

const sampleProbeOutput = `Input #0, matroska,webm, from '/media/movie.mkv':
  Metadata:
    title           : Movie
  Duration: 01:52:24.38, start: 0.000000, bitrate: 15518 kb/s
  Stream #0:0(eng): Video: h264 (High), yuv420p(tv, bt709, progressive), 1920x1080, 23.98 fps
  Stream #0:1(eng): Audio: dts (DTS-HD MA), 48000 Hz, 5.1(side), s32p (24 bit)
  Stream #0:2(fre): Audio: ac3, 48000 Hz, 5.1(side), fltp, 640 kb/s
  Stream #0:3: Subtitle: subrip
`

func TestParseAudioStreams(t *testing.T) {
	streams := ParseAudioStreams(sampleProbeOutput)
	if len(streams) != 2 {
		t.Fatalf("expected 2 audio streams, got %d: %+v", len(streams), streams)
	}
	if streams[0].Selector != "0:1" || streams[0].Annotation != "eng" || streams[0].Codec != "dts" {
		t.Fatalf("unexpected first stream: %+v", streams[0])
	}
	if streams[1].Selector != "0:2" || streams[1].Annotation != "fre" || streams[1].Codec != "ac3" {
		t.Fatalf("unexpected second stream: %+v", streams[1])
	}
}

func TestParseAudioStreamsStripsTrailingComma(t *testing.T) {
	streams := ParseAudioStreams("  Stream #0:1: Audio: mp3, 44100 Hz, stereo\n")
	if len(streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(streams))
	}
	if streams[0].Codec != "mp3" {
		t.Fatalf("codec %q, want mp3", streams[0].Codec)
	}
}

func TestParseAudioStreamsHexID(t *testing.T) {
	streams := ParseAudioStreams("  Stream #0:1[0x2](jpn): Audio: aac (LC), 48000 Hz\n")
	if len(streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(streams))
	}
	got := streams[0]
	if got.Selector != "0:1" || got.Annotation != "jpn" || got.Codec != "aac" {
		t.Fatalf("unexpected stream: %+v", got)
	}
}

func TestSelectAudioStreamPrefersEnglish(t *testing.T) {
	stream, ok := SelectAudioStream([]AudioStream{
		{Selector: "0:1", Annotation: "eng", Codec: "aac"},
		{Selector: "0:2", Annotation: "fre", Codec: "ac3"},
	})
	if !ok || stream.Selector != "0:1" {
		t.Fatalf("selected %+v, want 0:1", stream)
	}
}

func TestSelectAudioStreamFallsBackToUnannotated(t *testing.T) {
	stream, ok := SelectAudioStream([]AudioStream{
		{Selector: "0:1", Annotation: "fre", Codec: "ac3"},
		{Selector: "0:2", Annotation: "", Codec: "aac"},
	})
	if !ok || stream.Selector != "0:2" {
		t.Fatalf("selected %+v, want 0:2", stream)
	}
}

func TestSelectAudioStreamFallsBackToFirst(t *testing.T) {
	stream, ok := SelectAudioStream([]AudioStream{
		{Selector: "0:1", Annotation: "fre", Codec: "ac3"},
	})
	if !ok || stream.Selector != "0:1" {
		t.Fatalf("selected %+v, want 0:1", stream)
	}
}

func TestSelectAudioStreamEmpty(t *testing.T) {
	if _, ok := SelectAudioStream(nil); ok {
		t.Fatal("expected no selection for empty stream list")
	}
}
