package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	instanceTypeRe = regexp.MustCompile(`\b([tmcr]\d[a-z]?\.\w+)\b`)
	regionRe       = regexp.MustCompile(`\b([a-z]{2}-[a-z]+-\d+)\b`)
	storageRe      = regexp.MustCompile(`(\d+)\s?gb`)
	envRe          = regexp.MustCompile(`\b(dev|qa|prod)\b`)
)

// osWords maps recognized OS spellings to their canonical name, checked in
// order so that "ubuntu22" wins over "ubuntu".
var osWords = []struct{ word, canonical string }{
	{"ubuntu22", "ubuntu22"},
	{"ubuntu", "ubuntu"},
	{"amazon linux", "amazon-linux"},
	{"amazon-linux", "amazon-linux"},
	{"windows", "windows"},
	{"centos", "centos"},
}

// heuristicFallback is the deterministic extractor used when the LLM path is
// unavailable or fails. It never errors and always returns a valid set tagged
// with a fixed low confidence.
func (e *Extractor) heuristicFallback(message string) RequirementSet {
	low := strings.ToLower(strings.TrimSpace(message))

	set := RequirementSet{
		Intent:     "create_instance",
		Confidence: fallbackConfidence,
	}

	if m := envRe.FindStringSubmatch(low); m != nil {
		set.Environment = &m[1]
	}
	if m := instanceTypeRe.FindStringSubmatch(low); m != nil {
		set.InstanceType = &m[1]
	}
	for _, os := range osWords {
		if strings.Contains(low, os.word) {
			canonical := os.canonical
			set.OperatingSystem = &canonical
			break
		}
	}
	if m := regionRe.FindStringSubmatch(low); m != nil {
		set.Region = &m[1]
	}
	if m := storageRe.FindStringSubmatch(low); m != nil {
		if size, err := strconv.Atoi(m[1]); err == nil {
			set.StorageSize = &size
		}
	}

	set.Missing = computeMissing(set)
	return set
}
