package session

import (
	"regexp"
	"strings"

	"github.com/buckleypaul/dct/internal/protocol"
)

// Part numbers are matched after upper-casing and removing spaces and
// dashes, so "sn74ls00n" and "74-HC-00" both classify as NAND.
var (
	nandParts = []*regexp.Regexp{
		regexp.MustCompile(`^(?:SN|DM|MC|N)?(?:54|74)[A-Z]*00[A-Z]*$`),
		regexp.MustCompile(`^(?:CD|HEF|MC1?)?4011[A-Z]*$`),
	}
	inverterParts = []*regexp.Regexp{
		regexp.MustCompile(`^(?:SN|DM|MC|N)?(?:54|74)[A-Z]*(?:04|14)[A-Z]*$`),
		regexp.MustCompile(`^(?:CD|HEF|MC1?)?4069[A-Z]*$`),
	}
)

// ClassifyChip maps a detected part label to the logic test it supports.
func ClassifyChip(label string) (protocol.TestKind, bool) {
	norm := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToUpper(strings.TrimSpace(label)))
	if norm == "" {
		return 0, false
	}
	for _, re := range nandParts {
		if re.MatchString(norm) {
			return protocol.NAND, true
		}
	}
	for _, re := range inverterParts {
		if re.MatchString(norm) {
			return protocol.Inverter, true
		}
	}
	return 0, false
}
