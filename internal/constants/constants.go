package constants

const USER_AGENT = "liveops-client/1.0 (+https://github.com/Amund211/liveops)"
