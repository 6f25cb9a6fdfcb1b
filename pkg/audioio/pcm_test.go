package audioio

import "testing"

func ramp(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(i)
	}
	return s
}

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		from, to int
		wantLen  int
	}{
		{"same rate", ramp(5), 24000, 24000, 5},
		{"espeak to device", ramp(2205), 22050, 24000, 2400},
		{"halve", ramp(960), 48000, 24000, 480},
		{"double", ramp(240), 12000, 24000, 480},
		{"empty", nil, 16000, 24000, 0},
		{"zero rate", ramp(3), 0, 24000, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resample(tt.in, tt.from, tt.to)
			if len(got) != tt.wantLen {
				t.Fatalf("expected %d samples, got %d", tt.wantLen, len(got))
			}
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	got := Resample([]int16{0, 100, 200}, 1, 2)
	want := []int16{0, 50, 100, 150, 200, 200}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestUpmixDownmix(t *testing.T) {
	stereo := Upmix([]int16{7, -3})
	if len(stereo) != 4 || stereo[0] != 7 || stereo[1] != 7 || stereo[3] != -3 {
		t.Fatalf("unexpected stereo %v", stereo)
	}

	mono := Downmix([]int16{100, 300, -32768, -32768})
	if len(mono) != 2 || mono[0] != 200 || mono[1] != -32768 {
		t.Errorf("unexpected mono %v", mono)
	}
}

func TestGain(t *testing.T) {
	in := []int16{1000, -1000, 30000}
	if got := Gain(in, 1); &got[0] != &in[0] {
		t.Error("expected unity gain to return the input")
	}

	got := Gain(in, 2)
	if got[0] != 2000 || got[1] != -2000 || got[2] != 32767 {
		t.Errorf("unexpected scaled samples %v", got)
	}
	if Gain([]int16{-30000}, 2)[0] != -32768 {
		t.Error("expected negative clipping")
	}
}

func TestLevel(t *testing.T) {
	if Level(nil) != 0 || Level([]int16{0, 0}) != 0 {
		t.Error("expected silence to have zero level")
	}
	if l := Level([]int16{-32768, 32767}); l != 1 {
		t.Errorf("expected full scale, got %f", l)
	}
	if l := Level([]int16{16384, -16384}); l < 0.49 || l > 0.51 {
		t.Errorf("expected about half scale, got %f", l)
	}
}

func TestConfigConvert(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = 2

	out := cfg.Convert(AudioChunk{Samples: make([]int16, 480), SampleRate: 12000, Channels: 1})
	if out.SampleRate != 24000 || out.Channels != 2 {
		t.Fatalf("unexpected format %d Hz, %d ch", out.SampleRate, out.Channels)
	}
	if len(out.Samples) != 960*2 {
		t.Errorf("expected %d samples, got %d", 960*2, len(out.Samples))
	}

	cfg.Channels = 1
	out = cfg.Convert(AudioChunk{Samples: make([]int16, 960), SampleRate: 24000, Channels: 2})
	if len(out.Samples) != 480 {
		t.Errorf("expected downmix to 480 samples, got %d", len(out.Samples))
	}
}

func BenchmarkResample(b *testing.B) {
	samples := ramp(22050)
	for b.Loop() {
		_ = Resample(samples, 22050, 24000)
	}
}
