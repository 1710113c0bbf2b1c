package thread

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBrand is returned for a brand without a palette.
var ErrUnknownBrand = errors.New("thread: unknown brand")

// Brand identifies a thread manufacturer line.
type Brand string

const (
	Madeira Brand = "madeira"
	Isacord Brand = "isacord"
	Sulky   Brand = "sulky"
)

// Brands lists the brands with palettes, in display order.
var Brands = []Brand{Madeira, Isacord, Sulky}

// ParseBrand accepts a brand name case-insensitively.
func ParseBrand(s string) (Brand, error) {
	b := Brand(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := palettes[b]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBrand, s)
	}
	return b, nil
}

// Entry is one thread in a brand palette.
type Entry struct {
	Brand Brand  `json:"brand"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// Palette returns a copy of the brand's thread list.
func Palette(b Brand) ([]Entry, error) {
	p, ok := palettes[b]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBrand, b)
	}
	out := make([]Entry, len(p))
	for i, e := range p {
		out[i] = Entry{Brand: b, Code: e.code, Name: e.name, Color: e.color}
	}
	return out, nil
}

// Nearest returns the brand thread closest to c.
func Nearest(b Brand, c Color) (Entry, error) {
	p, err := Palette(b)
	if err != nil {
		return Entry{}, err
	}
	colors := make([]Color, len(p))
	for i, e := range p {
		colors[i] = e.Color
	}
	return p[NearestIndex(c, colors)], nil
}

type entry struct {
	code  string
	name  string
	color Color
}

var palettes = map[Brand][]entry{
	Madeira: {
		{"1000", "Black", RGB(0, 0, 0)},
		{"1001", "White", RGB(255, 255, 255)},
		{"1147", "Scarlet", RGB(206, 17, 38)},
		{"1181", "Christmas Red", RGB(184, 16, 44)},
		{"1078", "Tangerine", RGB(246, 127, 36)},
		{"1024", "Goldenrod", RGB(240, 180, 25)},
		{"1023", "Yellow", RGB(250, 219, 62)},
		{"1049", "Kelly Green", RGB(0, 122, 61)},
		{"1051", "Christmas Green", RGB(0, 94, 52)},
		{"1104", "Lime", RGB(142, 196, 73)},
		{"1134", "Royal Blue", RGB(0, 56, 147)},
		{"1143", "Navy", RGB(16, 30, 70)},
		{"1097", "Sky Blue", RGB(110, 170, 220)},
		{"1122", "Purple", RGB(88, 40, 125)},
		{"1121", "Lilac", RGB(170, 140, 200)},
		{"1116", "Pink", RGB(245, 170, 190)},
		{"1058", "Brown", RGB(101, 60, 30)},
		{"1055", "Tan", RGB(200, 160, 110)},
		{"1011", "Silver Grey", RGB(160, 160, 165)},
		{"1041", "Charcoal", RGB(70, 70, 75)},
	},
	Isacord: {
		{"0020", "Black", RGB(0, 0, 0)},
		{"0015", "White", RGB(255, 255, 255)},
		{"1902", "Poppy", RGB(200, 16, 46)},
		{"1805", "Strawberry", RGB(220, 50, 60)},
		{"1102", "Pumpkin", RGB(245, 120, 30)},
		{"0700", "Bright Yellow", RGB(255, 221, 0)},
		{"0811", "Champagne", RGB(235, 200, 140)},
		{"5513", "Emerald", RGB(0, 135, 80)},
		{"5833", "Evergreen", RGB(25, 85, 55)},
		{"6011", "Limabean", RGB(150, 190, 70)},
		{"3544", "Royal Blue", RGB(20, 60, 160)},
		{"3444", "Navy", RGB(25, 35, 80)},
		{"3815", "Reef Blue", RGB(80, 150, 210)},
		{"2702", "Grape", RGB(90, 45, 130)},
		{"2830", "Wild Iris", RGB(160, 120, 190)},
		{"2153", "Dusty Mauve", RGB(230, 160, 180)},
		{"1366", "Mahogany", RGB(110, 55, 35)},
		{"0873", "Pecan", RGB(190, 150, 100)},
		{"0142", "Sterling", RGB(165, 165, 170)},
		{"0132", "Dark Pewter", RGB(75, 75, 80)},
	},
	Sulky: {
		{"942-1005", "Black", RGB(0, 0, 0)},
		{"942-1001", "Bright White", RGB(255, 255, 255)},
		{"942-1147", "Christmas Red", RGB(190, 20, 40)},
		{"942-1039", "True Red", RGB(215, 35, 45)},
		{"942-1078", "Tangerine", RGB(245, 125, 40)},
		{"942-1023", "Yellow", RGB(250, 215, 55)},
		{"942-1024", "Goldenrod", RGB(235, 175, 30)},
		{"942-1051", "Christmas Green", RGB(0, 100, 55)},
		{"942-1049", "Grass Green", RGB(20, 130, 65)},
		{"942-1510", "Lime Green", RGB(145, 195, 75)},
		{"942-1076", "Royal Blue", RGB(10, 60, 150)},
		{"942-1043", "Navy Blue", RGB(20, 32, 75)},
		{"942-1028", "Baby Blue", RGB(120, 175, 225)},
		{"942-1122", "Purple", RGB(85, 40, 120)},
		{"942-1193", "Lavender", RGB(175, 145, 205)},
		{"942-1108", "Light Mauve", RGB(240, 165, 185)},
		{"942-1130", "Dark Brown", RGB(95, 58, 32)},
		{"942-1055", "Tawny Tan", RGB(205, 165, 115)},
		{"942-1011", "Steel Grey", RGB(155, 155, 160)},
		{"942-1234", "Almost Black", RGB(50, 50, 55)},
	},
}
