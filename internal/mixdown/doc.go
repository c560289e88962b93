// Package mixdown derives the final mixed audio artifact from a downloaded
// recording: stem archives are extracted and downmixed through ffmpeg, and
// single mixed downloads are transcoded to the target format.
package mixdown
