package state

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alusync/pins"
)

func TestStore_SetPinCanonical(t *testing.T) {
	s := NewStore()

	name, ok := s.SetPin("a0", true)
	require.True(t, ok)
	assert.Equal(t, "A0", name)
	assert.True(t, s.Pin("A0"))
	assert.True(t, s.Pin(" a0 "))
	assert.Equal(t, map[string]bool{"A0": true}, s.Pins())
}

func TestStore_RejectsOutputAndUnknownPins(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"F0", "CN4", "Z9", ""} {
		_, ok := s.SetPin(name, true)
		assert.False(t, ok, name)
	}
	assert.Empty(t, s.Pins())
	assert.False(t, s.Pin("F0"))
}

func TestStore_PinsIsCopy(t *testing.T) {
	s := NewStore()
	s.SetPin("M", true)

	snapshot := s.Pins()
	snapshot["M"] = false
	snapshot["A1"] = true

	assert.Equal(t, map[string]bool{"M": true}, s.Pins())
	assert.Equal(t, map[string]bool{"M": true}, s.State().Pins)
}

func TestStore_Outputs(t *testing.T) {
	s := NewStore()
	_, ok := s.Outputs()
	assert.False(t, ok)
	assert.Nil(t, s.OutputsRaw())

	s.SetOutputs(pins.NewOutputsSnapshot(0x12))
	s.SetOutputs(pins.NewOutputsSnapshot(0x3C))

	o, ok := s.Outputs()
	require.True(t, ok)
	assert.Equal(t, pins.NewOutputsSnapshot(0x3C), o)
	require.NotNil(t, s.OutputsRaw())
	assert.Equal(t, uint8(0x3C), *s.OutputsRaw())
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				pin := pins.InputPins[(g+i)%len(pins.InputPins)]
				s.SetPin(pin, i%2 == 0)
				s.SetOutputs(pins.NewOutputsSnapshot(uint8(i)))
				for range s.Pins() {
				}
				_ = s.OutputsRaw()
			}
		}(g)
	}
	wg.Wait()
	assert.Len(t, s.Pins(), len(pins.InputPins))
}

func TestStore_StateTracksEveryToggle(t *testing.T) {
	s := NewStore()
	toggles := []struct {
		pin   string
		value bool
	}{
		{"a0", true}, {"S3", true}, {"cn", false}, {"A0", false}, {"m", true}, {"F2", true},
	}
	for _, tg := range toggles {
		s.SetPin(tg.pin, tg.value)
	}

	want := SyncState{Pins: map[string]bool{"A0": false, "S3": true, "CN": false, "M": true}}
	if diff := cmp.Diff(want, s.State()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}
