package rewards

// defaultMilestones is the static milestone table. Milestones repeat in
// cycles: the dedup key encodes the cycle number, so the same threshold can
// be re-earned after a streak resets and rebuilds.
var defaultMilestones = []StreakMilestone{
	{StreakType: StreakPresence, RequiredCount: 3, RewardCredits: 5, DisplayName: "Showing Up"},
	{StreakType: StreakPresence, RequiredCount: 7, RewardCredits: 10, DisplayName: "One Week Present"},
	{StreakType: StreakPresence, RequiredCount: 14, RewardCredits: 20, DisplayName: "Two Weeks Present"},
	{StreakType: StreakPresence, RequiredCount: 30, RewardCredits: 50, DisplayName: "A Month of Presence"},
	{StreakType: StreakPresence, RequiredCount: 100, RewardCredits: 150, DisplayName: "Hundred Days Present"},
	{StreakType: StreakKindness, RequiredCount: 3, RewardCredits: 5, DisplayName: "Kind Start"},
	{StreakType: StreakKindness, RequiredCount: 7, RewardCredits: 10, DisplayName: "Kind Week"},
	{StreakType: StreakKindness, RequiredCount: 30, RewardCredits: 50, DisplayName: "Kind Month"},
	{StreakType: StreakResponse, RequiredCount: 3, RewardCredits: 5, DisplayName: "Quick to Answer"},
	{StreakType: StreakResponse, RequiredCount: 7, RewardCredits: 10, DisplayName: "Reliable Responder"},
	{StreakType: StreakResponse, RequiredCount: 30, RewardCredits: 50, DisplayName: "Always There"},
}

func (service *Service) milestoneFor(streakType StreakType, count int) (StreakMilestone, bool) {
	for _, milestone := range service.milestones {
		if milestone.StreakType == streakType && milestone.RequiredCount == count {
			return milestone, true
		}
	}
	return StreakMilestone{}, false
}
