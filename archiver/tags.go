package archiver

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ndlib/sipbag/bagit"
	"github.com/ndlib/sipbag/sip"
)

// AgentTags turns every attribute of the agent into a "X-Agent-<Key>" tag,
// in the order of the agent. The key "ip_address" gives the tag
// "X-Agent-Ip-Address".
func AgentTags(agent sip.Agent) []bagit.Tag {
	var result []bagit.Tag
	title := cases.Title(language.Und)
	for _, f := range agent {
		key := title.String(strings.ReplaceAll(f.Key, "_", "-"))
		result = append(result, bagit.Tag{Name: "X-Agent-" + key, Value: f.Value})
	}
	return result
}

// bagInfo returns the tags of the SIP's bag-info.txt. Values left empty
// are filled in by the bag writer.
func (a *Archiver) bagInfo(s *sip.SIP) []bagit.Tag {
	var result []bagit.Tag
	for _, t := range a.Tags {
		if t.Name == ExternalIdentifier && t.Value == "" {
			t.Value = s.ID + "/" + a.Profile
		}
		result = append(result, t)
	}
	if a.AgentTags != nil {
		result = append(result, a.AgentTags(s.Agent)...)
	}
	for i := range result {
		result[i].Value = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(result[i].Value)
	}
	return result
}
