package moderation

// DefaultKeywords seeds the blocked keyword list of a fresh store.
var DefaultKeywords = []string{
	// Violence and Fighting
	"violence",
	"fight",
	"beat",
	"beating",
	"assault",
	"attack",
	"brawl",
	"war",

	// Regions
	"india",
	"africa",
	"brazil",
	"mexico",

	// Accidents and Disasters
	"disaster",
	"train",
	"accident",
	"crash",
	"explosion",

	// Death and Killing
	"death",
	"dead",
	"die",
	"died",
	"dying",
	"kill",
	"killed",
	"killing",
	"murder",
	"suicide",
	"electrocution",

	// Gore and Blood
	"gore",
	"blood",
	"bloody",
	"bleeding",
	"graphic",
	"nsfl",
	"brutal",

	// Weapons and Violence Methods
	"shooting",
	"shot",
	"gun",
	"stabbing",
	"stab",
	"knife",
	"beheading",
	"decapitation",

	// Extreme Violence
	"execution",
	"torture",
	"mutilation",
	"dismember",
	"severed",
	"amputation",

	// Bodies and Remains
	"corpse",
	"body",
	"dead body",
	"remains",

	// Criminal and Cartel
	"cartel",
	"gang",
	"mafia",

	// Injuries and Medical Gore
	"injury",
	"wound",
	"trauma",
	"burn",
	"burned",

	// Disgusting and Filth
	"filth",
	"vomit",
	"puke",
	"puking",
	"vomiting",
	"feces",
	"shit",
	"poop",
	"scat",
	"defecate",
	"urine",
	"piss",
	"pee",
	"diarrhea",
	"sewage",
	"toilet",
	"gross",
	"disgusting",
	"rotten",
	"decay",
	"maggot",
	"worm",
	"parasite",

	// Other Disturbing
	"hanging",
	"lynching",
	"drowning",
	"suffocation",
	"rape",
	"abuse",
	"victim",
}
