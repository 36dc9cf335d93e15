package vault

// RedactionMarker is returned by Mask for values too short to partially
// reveal without leaking most of the secret.
const RedactionMarker = "***"

// Mask returns a partially redacted form of a secret suitable for logs and
// listings: the first four and last four characters joined by "...".
// Values of eight characters or fewer are fully redacted.
func Mask(secret string) string {
	if len(secret) <= 8 {
		return RedactionMarker
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
