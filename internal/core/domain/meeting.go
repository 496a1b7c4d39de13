package domain

import "regexp"

// MeetingProvider classifies the conferencing service behind a link.
type MeetingProvider string

const (
	ProviderMeet    MeetingProvider = "meet"
	ProviderZoom    MeetingProvider = "zoom"
	ProviderTeams   MeetingProvider = "teams"
	ProviderWebex   MeetingProvider = "webex"
	ProviderUnknown MeetingProvider = "unknown"
	ProviderNone    MeetingProvider = ""
)

// Known provider URL shapes, matched against free-text fields when no
// structured conferencing data is present.
var meetingLinkPatterns = []struct {
	provider MeetingProvider
	re       *regexp.Regexp
}{
	{ProviderMeet, regexp.MustCompile(`https://meet\.google\.com/[a-z0-9-]+`)},
	{ProviderZoom, regexp.MustCompile(`https://[a-zA-Z0-9.]*zoom\.us/j/[A-Za-z0-9?=&.-]+`)},
	{ProviderTeams, regexp.MustCompile(`https://teams\.microsoft\.com/l/meetup-join/[^\s<>"']+`)},
	{ProviderWebex, regexp.MustCompile(`https://[a-zA-Z0-9.-]*webex\.com/(?:meet|join)/[^\s<>"']+`)},
}

// ExtractMeetingLink finds a conferencing link for an event. The structured
// conferencing URI is checked first; otherwise free-text fields (location,
// description) are pattern-matched against known provider URL shapes.
func ExtractMeetingLink(conferenceURI string, texts ...string) (string, MeetingProvider) {
	if conferenceURI != "" {
		return conferenceURI, ClassifyMeetingLink(conferenceURI)
	}

	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, p := range meetingLinkPatterns {
			if link := p.re.FindString(text); link != "" {
				return link, p.provider
			}
		}
	}

	return "", ProviderNone
}

// ClassifyMeetingLink returns the provider for a known link shape, or
// ProviderUnknown for an unrecognised URL.
func ClassifyMeetingLink(link string) MeetingProvider {
	for _, p := range meetingLinkPatterns {
		if p.re.MatchString(link) {
			return p.provider
		}
	}
	return ProviderUnknown
}
