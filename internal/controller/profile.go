package controller

import (
	"strings"

	"envmon_dashboard/internal/models"
)

// Profile is the blueprint a controller is built from. Controllers differ
// only by their profile; nothing else is copied between them.
type Profile struct {
	Kind        models.SensorKind
	Label       string
	ModeAware   bool
	DefaultMode models.PowerMode
}

var profiles = map[models.SensorKind]Profile{
	models.KindMQ2:     {Kind: models.KindMQ2, Label: "gas sensor (MQ2)", ModeAware: true, DefaultMode: models.ModeEco},
	models.KindBMP180:  {Kind: models.KindBMP180, Label: "barometric sensor (BMP180)", ModeAware: true, DefaultMode: models.ModeAlways},
	models.KindBH1750:  {Kind: models.KindBH1750, Label: "light sensor (BH1750)", ModeAware: true, DefaultMode: models.ModeAlways},
	models.KindRadio:   {Kind: models.KindRadio, Label: "radio module", ModeAware: false},
	models.KindDisplay: {Kind: models.KindDisplay, Label: "display", ModeAware: false},
}

// ProfileFor returns the blueprint of kind.
func ProfileFor(kind models.SensorKind) (Profile, bool) {
	p, ok := profiles[kind]
	return p, ok
}

// modeNames are display fallbacks for when the server omits mode_name.
var modeNames = map[models.PowerMode]string{
	models.ModeEco:     "Eco",
	models.ModeBalance: "Balance",
	models.ModeSafe:    "Safe",
	models.ModeAlways:  "Always on",
	models.ModeDev:     "Developer",
}

// ModeName returns the display name of mode.
func ModeName(mode models.PowerMode) string {
	if n, ok := modeNames[mode]; ok {
		return n
	}
	return string(mode)
}

// modeLabel renders "<icon> <name>", falling back to the local name.
func modeLabel(mode models.PowerMode, name, icon string) string {
	if name == "" {
		name = ModeName(mode)
	}
	return strings.TrimSpace(icon + " " + name)
}
