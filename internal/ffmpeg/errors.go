package ffmpeg

import "regexp"

// Stderr patterns used to label a failed stage in logs and error fields.
var (
	reMissingInput = regexp.MustCompile(`(?i)No such file or directory`)
	reInvalidData  = regexp.MustCompile(`(?i)Invalid data found when processing input|moov atom not found|could not find codec parameters`)
	reFilterGraph  = regexp.MustCompile(`(?i)Error (initializing|reinitializing|configuring) (complex )?filters?|No such filter|Invalid argument`)
	reEncoder      = regexp.MustCompile(`(?i)Unknown encoder|Error while opening encoder`)
	reConcat       = regexp.MustCompile(`(?i)Unsafe file name|Line \d+: unknown keyword`)
)

// Classify maps ffmpeg stderr to a short reason label.
func Classify(stderr string) string {
	switch {
	case reMissingInput.MatchString(stderr):
		return "missing_input"
	case reInvalidData.MatchString(stderr):
		return "invalid_input"
	case reConcat.MatchString(stderr):
		return "concat_list"
	case reEncoder.MatchString(stderr):
		return "encoder"
	case reFilterGraph.MatchString(stderr):
		return "filter_graph"
	default:
		return "unknown"
	}
}
