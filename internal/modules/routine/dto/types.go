package dto

type RoutineOutput struct {
	ID           string
	Name         string
	StepCount    int
	CycleSeconds int
	Repeat       string
}

type StepOutput struct {
	ID              string
	Label           string
	DurationSeconds int
	Instruction     string
	CheckIn         string
	CountAsBreak    bool
	Sound           string
}

type RoutineDetailOutput struct {
	RoutineOutput
	SoundDefault string
	SoundScheme  string
	Steps        []StepOutput
}

type ImportInput struct {
	Raw []byte
}
