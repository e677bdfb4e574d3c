package alarm

// Switches mirrors the per-mode selection switches and the per-mode siren
// switches exposed to the host automation system. At most one switch of
// each kind is on at a time.
type Switches struct {
	modes  map[Mode]bool
	sirens map[Mode]bool
}

// NewSwitches creates a switch set with every switch off
func NewSwitches() *Switches {
	s := &Switches{
		modes:  make(map[Mode]bool),
		sirens: make(map[Mode]bool),
	}
	for _, m := range TargetModes {
		s.modes[m] = false
		if m.IsArmed() {
			s.sirens[m] = false
		}
	}
	return s
}

// SetActiveMode turns the switch for mode on and every other mode switch off
func (s *Switches) SetActiveMode(mode Mode) {
	for m := range s.modes {
		s.modes[m] = m == mode
	}
}

// ActiveMode returns the mode whose switch is on, or "" when none is
func (s *Switches) ActiveMode() Mode {
	for m, on := range s.modes {
		if on {
			return m
		}
	}
	return ""
}

// SetSiren sets the siren switch of an armed mode. Turning one on turns
// the others off.
func (s *Switches) SetSiren(mode Mode, on bool) {
	if _, ok := s.sirens[mode]; !ok {
		return
	}
	if on {
		s.ClearSirens()
	}
	s.sirens[mode] = on
}

// ClearSirens turns every siren switch off
func (s *Switches) ClearSirens() {
	for m := range s.sirens {
		s.sirens[m] = false
	}
}

// ModeSwitches returns a copy of the mode switch states
func (s *Switches) ModeSwitches() map[Mode]bool {
	return copyModeMap(s.modes)
}

// SirenSwitches returns a copy of the siren switch states
func (s *Switches) SirenSwitches() map[Mode]bool {
	return copyModeMap(s.sirens)
}

func copyModeMap(in map[Mode]bool) map[Mode]bool {
	out := make(map[Mode]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
