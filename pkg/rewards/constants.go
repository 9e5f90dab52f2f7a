package rewards

const (
	operationAward       = "award"
	operationStreak      = "streak_milestone"
	operationConsistency = "consistency"
	operationBalanced    = "balanced_day"
	operationReflection  = "weekly_reflection"
	operationFirstTime   = "first_time"
	operationSeasonal    = "seasonal"

	operationStatusOK      = "ok"
	operationStatusError   = "error"
	operationStatusSkipped = "skipped"

	consistencyInterval      = 10
	consistencyTierOneLimit  = 100
	consistencyTierTwoLimit  = 500
	consistencyTierOneAmount = AmountCredits(5)
	consistencyTierTwoAmount = AmountCredits(4)
	consistencyTierBaseline  = AmountCredits(3)

	balancedBonusAmount    = AmountCredits(10)
	reflectionBonusAmount  = AmountCredits(15)
	firstEchoBonusAmount   = AmountCredits(25)
	firstAnswerBonusAmount = AmountCredits(10)

	// relatedIds doubling as one-time reward types in the global history.
	RelatedIDFirstEcho     = "FIRST_TIME_ECHO"
	RelatedIDFirstResponse = "FIRST_TIME_RESPONSE"

	dayKeyLayout = "2006-01-02"
)
