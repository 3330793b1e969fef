package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Acme Ltd", NormalizeName("  Acme \t  Ltd \n"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "short", Summary("short", 10))
	assert.Equal(t, "call the…", Summary("call the customer tomorrow", 10))
	assert.Equal(t, "abcde…", Summary("abcdefghij", 5))
}

func TestPhoneNumber(t *testing.T) {
	assert.Equal(t, "050-000-0000", PhoneNumber("(050) 000 0000"))
	assert.Equal(t, "123-45", PhoneNumber("12345"))
	assert.Equal(t, "", PhoneNumber("n/a"))
}
