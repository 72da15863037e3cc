package core

// RecognitionResult is one interim or final transcription of local speech.
type RecognitionResult struct {
	Text       string
	Final      bool
	Confidence float64
}

// Recognizer is a session-based speech engine: it ends on its own and has
// to be started again for continuous recognition.
type Recognizer interface {
	Start() error
	Stop()
	OnResult(func(RecognitionResult))
	// OnError receives engine error codes such as "no-speech" or "not-allowed".
	OnError(func(code string))
	OnEnd(func())
}
