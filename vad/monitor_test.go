package vad

import "testing"

func feedN(m *Monitor, voiced bool, n int) QuietEvent {
	var last QuietEvent
	for i := 0; i < n; i++ {
		last = m.Tick(voiced)
	}
	return last
}

func TestQuietWarnAfter8s(t *testing.T) {
	m := NewMonitor()
	// 79 quiet ticks, no warning yet
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != QuietNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	// 80th tick triggers the warning (8s)
	if ev := m.Tick(false); ev != QuietWarn {
		t.Fatalf("expected QuietWarn at tick 80, got %d", ev)
	}
}

func TestQuietClearsOnSpeech(t *testing.T) {
	m := NewMonitor()
	feedN(m, false, 80)

	// Sustained speech clears the warning (need 25% of the 80-tick window)
	for i := 0; i < 80; i++ {
		if ev := m.Tick(true); ev == QuietClear {
			return
		}
	}
	t.Fatal("expected QuietClear after speech")
}

func TestNoWarnDuringSpeech(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == QuietWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestQuietRepeatWarn(t *testing.T) {
	m := NewMonitor()
	feedN(m, false, 80)
	// Next repeat at tick 80 + 80 = 160
	var gotRepeat bool
	for i := 0; i < 100; i++ {
		if ev := m.Tick(false); ev == QuietRepeat {
			gotRepeat = true
			break
		}
	}
	if !gotRepeat {
		t.Fatal("expected QuietRepeat while still quiet")
	}
}

func TestWarnOnlyOnceBeforeClear(t *testing.T) {
	m := NewMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false); ev == QuietWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 QuietWarn, got %d", warns)
	}
}

func TestWarnStaysDuringNoise(t *testing.T) {
	m := NewMonitor()
	feedN(m, false, 80)

	// Occasional VAD false positives (< 25% voiced) should NOT clear
	for i := 0; i < 80; i++ {
		voiced := i%10 == 0
		if ev := m.Tick(voiced); ev == QuietClear {
			t.Fatalf("warning cleared with 10%% voiced at tick %d", i)
		}
	}
}

func TestResetForgetsHistory(t *testing.T) {
	m := NewMonitor()
	feedN(m, false, 80)
	m.Reset()
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != QuietNone {
			t.Fatalf("unexpected event after reset at tick %d: %d", i, ev)
		}
	}
}
