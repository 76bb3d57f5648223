// Package subtitle synthesizes timed caption cues from speech transcripts and
// renders them as SRT or ASS documents.
//
// The pipeline is: transcript units (segment- or word-level timestamps) feed
// the Planner, which groups words into display cues under a configurable
// chunking policy; the emitters serialize the planned cues (plain SRT) or the
// per-word timings (ASS karaoke with reveal-duration tags). Style profiles
// fix the rendering parameters the video compositor consumes.
//
// Everything in this package is pure: no network or disk I/O, and identical
// inputs always produce byte-identical output.
package subtitle
