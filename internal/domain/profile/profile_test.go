package profile_test

import (
	"errors"
	"testing"

	"github.com/okian/padcal/internal/domain/profile"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/threshold"
	. "github.com/smartystreets/goconvey/convey"
)

func sample() profile.Profile {
	return profile.Profile{
		Version:     profile.Version,
		ReleaseMode: release.Global,
		GlobalRatio: 0.8,
		Sensors: map[int]threshold.Pair{
			0: {Activation: 0.5, Release: 0.4},
			3: {Activation: 0.75, Release: 0.6},
		},
		Mapping: map[int]int{0: 1, 3: 2},
	}
}

func TestRoundTrip(t *testing.T) {
	Convey("Given a valid profile", t, func() {
		p := sample()

		for _, f := range []profile.Format{profile.JSON, profile.YAML} {
			Convey("When encoding and decoding as "+f.String(), func() {
				b, err := profile.Encode(p, f)
				So(err, ShouldBeNil)
				got, err := profile.Decode(b, f)

				Convey("Then the profile is unchanged", func() {
					So(err, ShouldBeNil)
					So(got, ShouldResemble, p)
				})
			})
		}

		Convey("When the mode is not global", func() {
			p.ReleaseMode = release.Individual
			p.GlobalRatio = 0
			b, err := profile.Encode(p, profile.JSON)
			So(err, ShouldBeNil)

			Convey("Then no ratio is written", func() {
				So(string(b), ShouldNotContainSubstring, "globalRatio")
				got, err := profile.Decode(b, profile.JSON)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, p)
			})
		})
	})
}

func TestDecode(t *testing.T) {
	Convey("Given the documented example document", t, func() {
		doc := `{"version":1,"releaseMode":"global","globalRatio":0.8,
			"sensors":{"0":{"activation":0.5,"release":0.4}},"mapping":{"0":1}}`

		Convey("When decoding it", func() {
			p, err := profile.Decode([]byte(doc), profile.JSON)

			Convey("Then every field is populated", func() {
				So(err, ShouldBeNil)
				So(p.ReleaseMode, ShouldEqual, release.Global)
				So(p.GlobalRatio, ShouldEqual, 0.8)
				So(p.Sensors[0], ShouldResemble, threshold.Pair{Activation: 0.5, Release: 0.4})
				So(p.Mapping, ShouldResemble, map[int]int{0: 1})
			})
		})
	})

	Convey("Given a YAML document without version or mapping", t, func() {
		doc := "releaseMode: none\nsensors:\n  2:\n    activation: 0.3\n    release: 0.3\n"
		p, err := profile.Decode([]byte(doc), profile.YAML)
		So(err, ShouldBeNil)
		So(p.Version, ShouldEqual, profile.Version)
		So(p.Sensors, ShouldResemble, map[int]threshold.Pair{2: {Activation: 0.3, Release: 0.3}})
		So(p.Mapping, ShouldNotBeNil)
		So(p.Mapping, ShouldBeEmpty)
	})

	Convey("Given malformed documents", t, func() {
		cases := map[string]string{
			"not json":           `{`,
			"missing mode":       `{"sensors":{}}`,
			"unknown mode":       `{"releaseMode":"sticky","sensors":{}}`,
			"missing sensors":    `{"releaseMode":"none"}`,
			"missing ratio":      `{"releaseMode":"global","sensors":{}}`,
			"ratio out of range": `{"releaseMode":"global","globalRatio":1.5,"sensors":{}}`,
			"activation > 1":     `{"releaseMode":"none","sensors":{"0":{"activation":1.2,"release":0.1}}}`,
			"negative release":   `{"releaseMode":"none","sensors":{"0":{"activation":0.2,"release":-0.1}}}`,
			"release above":      `{"releaseMode":"individual","sensors":{"0":{"activation":0.2,"release":0.3}}}`,
			"incomplete sensor":  `{"releaseMode":"none","sensors":{"0":{"activation":0.2}}}`,
			"bad key":            `{"releaseMode":"none","sensors":{"a":{"activation":0.2,"release":0.1}}}`,
			"negative key":       `{"releaseMode":"none","sensors":{"-1":{"activation":0.2,"release":0.1}}}`,
			"padded key":         `{"releaseMode":"none","sensors":{"01":{"activation":0.2,"release":0.1}}}`,
			"negative button":    `{"releaseMode":"none","sensors":{},"mapping":{"0":-2}}`,
			"future version":     `{"version":2,"releaseMode":"none","sensors":{}}`,
		}
		for name, doc := range cases {
			Convey("When decoding "+name, func() {
				_, err := profile.Decode([]byte(doc), profile.JSON)
				So(errors.Is(err, profile.ErrMalformedProfile), ShouldBeTrue)
			})
		}
	})
}

func TestEncodeRejectsInvalid(t *testing.T) {
	Convey("Given an invalid profile", t, func() {
		p := sample()
		p.Sensors[1] = threshold.Pair{Activation: 0.2, Release: 0.5}

		Convey("Then Encode refuses it", func() {
			_, err := profile.Encode(p, profile.JSON)
			So(errors.Is(err, profile.ErrMalformedProfile), ShouldBeTrue)
		})
	})
}

func TestFormatFromPath(t *testing.T) {
	Convey("Given file names", t, func() {
		So(profile.FormatFromPath("pad.yaml"), ShouldEqual, profile.YAML)
		So(profile.FormatFromPath("PAD.YML"), ShouldEqual, profile.YAML)
		So(profile.FormatFromPath("pad.json"), ShouldEqual, profile.JSON)
		So(profile.FormatFromPath("pad"), ShouldEqual, profile.JSON)
	})
}

func TestClone(t *testing.T) {
	Convey("Given a profile clone", t, func() {
		p := sample()
		c := p.Clone()
		c.Sensors[0] = threshold.Pair{}
		c.Mapping[0] = 9
		So(p.Sensors[0].Activation, ShouldEqual, 0.5)
		So(p.Mapping[0], ShouldEqual, 1)
	})
}
