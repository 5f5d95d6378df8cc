// Package release lists the distribution releases fappa builds for and
// selects among them with CEL expressions.
package release

import "fmt"

// Channel ranks how a release is supported.
type Channel string

const (
	Best       Channel = "best"
	Supported  Channel = "supported"
	Prerelease Channel = "prerelease"
)

// Release is one distribution release.
type Release struct {
	Distro   string
	Codename string
	Channel  Channel
	// LocalesAll is false on releases that lack the locales-all package.
	LocalesAll bool
}

// Base is the upstream image the release's template is built from.
func (r Release) Base() string {
	return fmt.Sprintf("%s:%s", r.Distro, r.Codename)
}

// Image is the tag of the release's prepared template image.
func (r Release) Image() string {
	return "fappa-" + r.Codename
}

// LocalesPackage is the package that provides locales on this release.
func (r Release) LocalesPackage() string {
	if r.LocalesAll {
		return "locales-all"
	}
	return "locales"
}

func (r Release) String() string {
	return r.Base()
}

var all = []Release{
	{Distro: "ubuntu", Codename: "bionic", Channel: Best, LocalesAll: true},
	{Distro: "debian", Codename: "stretch", Channel: Best, LocalesAll: true},
	{Distro: "ubuntu", Codename: "xenial", Channel: Supported, LocalesAll: true},
	{Distro: "ubuntu", Codename: "trusty", Channel: Supported, LocalesAll: false},
	{Distro: "debian", Codename: "jessie", Channel: Supported, LocalesAll: false},
	{Distro: "ubuntu", Codename: "cosmic", Channel: Prerelease, LocalesAll: true},
	{Distro: "debian", Codename: "buster", Channel: Prerelease, LocalesAll: true},
}

// All returns every known release, best first.
func All() []Release {
	out := make([]Release, len(all))
	copy(out, all)
	return out
}

// Lookup finds a release by codename.
func Lookup(codename string) (Release, bool) {
	for _, r := range all {
		if r.Codename == codename {
			return r, true
		}
	}
	return Release{}, false
}
