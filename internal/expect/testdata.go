package expect

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// Generated testData keys. A schema can reference any of these without
// declaring them; the loader fills them from a seeded generator so every
// run gets fresh values and the same seed reproduces the same run.
const (
	KeyEmail    = "email"
	KeyUser     = "user"
	KeyPassword = "password"
	KeyTitle    = "title"
	KeyNumber   = "number"
	KeyUUID     = "uuid"
)

// titleWords feed the generated title. Distinct values matter more than
// variety: the title only needs to be recognizable in a table or a page.
var (
	titleAdjectives = []string{"Quiet", "Crimson", "Hollow", "Golden", "Restless", "Velvet", "Broken", "Distant"}
	titleNouns      = []string{"Harbor", "Signal", "Orchard", "Lantern", "Meridian", "Thicket", "Ember", "Canyon"}
)

const passwordCharset = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GeneratedTestData produces the generated placeholder table for one run.
// The output is a pure function of the seed: replaying a run with its seed
// substitutes the exact same values into every schema.
func GeneratedTestData(seed int64) map[string]string {
	r := rand.New(rand.NewSource(seed)) //nolint:gosec // Reproducibility is the point, not secrecy

	n := r.Intn(9000) + 1000
	pw := make([]byte, 16)
	for i := range pw {
		pw[i] = passwordCharset[r.Intn(len(passwordCharset))]
	}

	var raw [16]byte
	for i := range raw {
		raw[i] = byte(r.Intn(256))
	}
	raw[6] = (raw[6] & 0x0f) | 0x40 // version 4
	raw[8] = (raw[8] & 0x3f) | 0x80 // RFC 4122 variant
	id := uuid.UUID(raw)

	return map[string]string{
		KeyEmail:    fmt.Sprintf("qa-%04d@example.com", n),
		KeyUser:     fmt.Sprintf("qa-user-%04d", n),
		KeyPassword: string(pw),
		KeyTitle: fmt.Sprintf("%s %s %d",
			titleAdjectives[r.Intn(len(titleAdjectives))],
			titleNouns[r.Intn(len(titleNouns))],
			n),
		KeyNumber: fmt.Sprintf("%d", n),
		KeyUUID:   id.String(),
	}
}
