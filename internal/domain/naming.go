package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// SanitizeName collapses anything outside [A-Za-z0-9] to underscores so
// supplier names are safe as file name stems.
func SanitizeName(name string) string {
	s := strings.Trim(nonAlnum.ReplaceAllString(name, "_"), "_")
	if s == "" {
		return "factory"
	}
	return s
}

// ArtifactBase is the extension-less output name for this group:
// sanitized supplier plus a short hash derived from supplier and order
// number, so similarly named suppliers never collide. The hash is
// deterministic, which keeps concurrent writers off each other's paths.
func (m *MergedOrderTemplate) ArtifactBase() string {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(m.Supplier+"\n"+m.CellString(CellOrderNo)))
	return SanitizeName(m.Supplier) + "-" + id.String()[:8]
}
