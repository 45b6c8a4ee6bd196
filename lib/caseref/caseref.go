package caseref

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Case references look like TS-GA-FULTON-20240101-A1B2C3-7. The trailing
// character is a check digit over everything before it, so references that
// were mangled by OCR or manual entry fail validation instead of silently
// pointing at the wrong case.

const randAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const checksumAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const counterBase = 36
const counterWidth = 2
const counterModulo = counterBase * counterBase

var refPattern = regexp.MustCompile(`^TS-([A-Z]{2})-([A-Z0-9]{3,8})-(\d{8})-([A-Z0-9]{6})-([A-Z0-9])$`)
var searchPattern = regexp.MustCompile(`(?i)TS-[A-Z]{2}-[A-Z0-9]{3,8}-\d{8}-[A-Z0-9]{6}-[A-Z0-9]`)

type Parts struct {
	State      string
	CountyCode string
	Date       string
	Random     string
	CheckDigit string
}

var counterMu sync.Mutex
var lastTimestamp int64
var counter int

// uniqueRandomBlock appends a monotonic counter suffix to the random block
// so references generated within the same millisecond cannot collide.
func uniqueRandomBlock() string {
	counterMu.Lock()
	timestamp := time.Now().UnixMilli()
	if timestamp == lastTimestamp {
		counter = (counter + 1) % counterModulo
	} else {
		lastTimestamp = timestamp
		counter = 0
	}
	suffix := strings.ToUpper(strconv.FormatInt(int64(counter), counterBase))
	counterMu.Unlock()

	for len(suffix) < counterWidth {
		suffix = "0" + suffix
	}
	return randomBlock(4) + suffix
}

func randomBlock(length int) string {
	bytes := make([]byte, length)
	// rand.Read only fails when the platform entropy source is broken
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}

	out := make([]byte, length)
	for i, b := range bytes {
		out[i] = randAlphabet[int(b)%len(randAlphabet)]
	}
	return string(out)
}

func charToValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c) - 55 // A => 10
	default:
		return 0
	}
}

func computeCheckDigit(core string) string {
	cleaned := strings.ToUpper(strings.ReplaceAll(core, "-", ""))
	accumulator := 0
	for i := 0; i < len(cleaned); i++ {
		accumulator = (accumulator*31 + charToValue(cleaned[i])) % len(checksumAlphabet)
	}
	return string(checksumAlphabet[accumulator])
}

// Generate builds a fresh case reference for the given jurisdiction and date.
func Generate(state, countyCode string, date time.Time) string {
	base := fmt.Sprintf(
		"TS-%s-%s-%s-%s",
		strings.ToUpper(state),
		strings.ToUpper(countyCode),
		date.UTC().Format("20060102"),
		uniqueRandomBlock(),
	)
	return base + "-" + computeCheckDigit(base)
}

// Validate reports whether ref matches the canonical format and carries the
// expected check digit.
func Validate(ref string) bool {
	match := refPattern.FindStringSubmatch(ref)
	if match == nil {
		return false
	}
	base := ref[:len(ref)-2]
	return computeCheckDigit(base) == strings.ToUpper(match[5])
}

// Parse splits a case reference into its components, rejecting malformed
// input and bad check digits.
func Parse(ref string) (Parts, error) {
	match := refPattern.FindStringSubmatch(ref)
	if match == nil {
		return Parts{}, fmt.Errorf("case reference is not in the expected format: %q", ref)
	}

	base := ref[:len(ref)-2]
	provided := strings.ToUpper(match[5])
	if computeCheckDigit(base) != provided {
		return Parts{}, fmt.Errorf("invalid check digit in case reference %q", ref)
	}

	return Parts{
		State:      match[1],
		CountyCode: match[2],
		Date:       match[3],
		Random:     match[4],
		CheckDigit: provided,
	}, nil
}

// ExtractFromText finds the first valid case reference embedded in free-form
// text, such as an email subject line.
func ExtractFromText(text string) (string, bool) {
	for _, candidate := range searchPattern.FindAllString(text, -1) {
		canonical := strings.ToUpper(candidate)
		if Validate(canonical) {
			return canonical, true
		}
	}
	return "", false
}
