package authflow

// Event is an input observed on a step after its backend call completed.
type Event uint8

const (
	// EventUserKnown follows a CheckUserExists call that returned true.
	EventUserKnown Event = iota + 1
	// EventOTPSent follows a successful SendOTP.
	EventOTPSent
	// EventLoginSucceeded follows a successful Login.
	EventLoginSucceeded
	// EventOTPVerified follows a successful VerifyOTP.
	EventOTPVerified
	// EventRegistered follows a successful Register.
	EventRegistered
	// EventPasswordReset follows a successful ResetPassword.
	EventPasswordReset
	// EventSessionRestored follows a startup check that found a session and profile.
	EventSessionRestored
	// EventNoSession follows a startup check that found nothing usable.
	EventNoSession
	// EventSignedOut follows a sign-out.
	EventSignedOut
	// EventFailed follows any failed call or rejected validation.
	EventFailed
)

type transitionKey struct {
	step    Step
	journey Journey
	event   Event
}

// transitions is the decision table. A missing key means "stay".
var transitions = map[transitionKey]Step{
	{StepSplash, "", EventSessionRestored}: StepComplete,
	{StepSplash, "", EventNoSession}:       StepEntry,

	{StepEntry, "", EventUserKnown}: StepPassword,
	{StepEntry, "", EventOTPSent}:   StepOTPVerify,

	{StepPassword, JourneyLogin, EventLoginSucceeded}: StepComplete,

	{StepOTPVerify, JourneyRegister, EventOTPVerified}:       StepRegister,
	{StepOTPVerify, JourneyForgotPassword, EventOTPVerified}: StepResetPassword,

	{StepForgotPassword, "", EventOTPSent}: StepOTPVerify,

	{StepRegister, JourneyRegister, EventRegistered}:               StepEntry,
	{StepResetPassword, JourneyForgotPassword, EventPasswordReset}: StepEntry,
}

// Next returns the step that follows ev on step within journey. Events
// that have no entry keep the flow on step. Steps that start a journey
// (Splash, Entry, ForgotPassword) ignore the journey argument.
func Next(step Step, journey Journey, ev Event) Step {
	if ev == EventSignedOut {
		return StepEntry
	}
	switch step {
	case StepSplash, StepEntry, StepForgotPassword:
		journey = ""
	}
	if to, ok := transitions[transitionKey{step: step, journey: journey, event: ev}]; ok {
		return to
	}
	return step
}
