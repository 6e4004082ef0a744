package domain

// Screen names the four steps of the experience.
type Screen string

const (
	ScreenLanding    Screen = "landing"
	ScreenInput      Screen = "input"
	ScreenGenerating Screen = "generating"
	ScreenReveal     Screen = "reveal"
)

// State is the current step together with the data that belongs to it.
// Only the four types below implement it.
type State interface {
	Screen() Screen
	isState()
}

// Landing is the welcome screen.
type Landing struct{}

// Input is the form. Error is set when the previous submission failed.
type Input struct {
	Error *UserError
}

// Generating waits for the letter (and, in sequential mode, image and voice).
type Generating struct {
	Input MemoryInput
}

// Reveal shows the letter. Result is a snapshot; later patches are visible
// only through a new snapshot.
type Reveal struct {
	Input  MemoryInput
	Result GenerationResult
}

func (Landing) Screen() Screen    { return ScreenLanding }
func (Input) Screen() Screen      { return ScreenInput }
func (Generating) Screen() Screen { return ScreenGenerating }
func (Reveal) Screen() Screen     { return ScreenReveal }

func (Landing) isState()    {}
func (Input) isState()      {}
func (Generating) isState() {}
func (Reveal) isState()     {}

// RevealMode selects when the reveal happens relative to image and voice.
type RevealMode string

const (
	// RevealBackground reveals as soon as the letter exists and loads image
	// and voice afterwards.
	RevealBackground RevealMode = "background"
	// RevealSequential waits for image and voice before revealing.
	RevealSequential RevealMode = "sequential"
)

// LetterFormat selects between free-form text and a JSON object that also
// carries an image prompt.
type LetterFormat string

const (
	LetterFormatText LetterFormat = "text"
	LetterFormatJSON LetterFormat = "json"
)
