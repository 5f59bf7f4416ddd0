package session

import (
	"time"

	"github.com/heartguard/heartguard/internal/narrative"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. Content grows append-only while an
// assistant turn streams; the role never changes after creation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a saved conversation. Sessions are created only on an explicit
// save action, never implicitly.
type Session struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
	Date     string    `json:"date"`
}

// AssessmentInput collects the subject's details for a psychological
// assessment. It is edited field-by-field and submitted as a unit; once
// submitted it is never mutated.
type AssessmentInput struct {
	ChildName   string   `json:"childName"`
	ChildAge    int      `json:"childAge"`
	ChildGender string   `json:"childGender"`
	Sleep       string   `json:"sleep"`
	Electronics string   `json:"electronics"`
	PeerRel     string   `json:"peerRel"`
	Concerns    []string `json:"concerns"`
	Photo       string   `json:"photo,omitempty"` // captured photo as a data URL, optional
	Notes       string   `json:"notes"`
	Details     string   `json:"details"`
}

// AssessmentReport pairs a submitted input with its generated analysis.
type AssessmentReport struct {
	Input  AssessmentInput `json:"input"`
	Result string          `json:"result"`
}

// StoryParams are the generation parameters for one story request.
type StoryParams struct {
	Theme    string `json:"theme"`
	AgeGroup string `json:"ageGroup"`
	Length   string `json:"length"`
	Tone     string `json:"tone"`
}

// StoryRecord pairs a parsed story with the parameters that produced it.
type StoryRecord struct {
	Narrative narrative.Narrative `json:"narrative"`
	Params    StoryParams         `json:"params"`
}

// welcomeContent seeds every fresh conversation.
const welcomeContent = "小朋友/同学你好呀！我是**康康老师**。🌻\n\n不论是开心还是难过的事情，你都可以悄悄告诉我。我会像大树洞一样守护你的秘密，也会像好朋友一样陪着你哦！"

// QuestionTab selects one of the suggested-question groups.
type QuestionTab string

const (
	TabKids       QuestionTab = "kids"
	TabTeens      QuestionTab = "teens"
	TabLeftBehind QuestionTab = "leftbehind"
)

var questionsKids = []string{
	"🎈 爸爸妈妈什么时候回来？",
	"🤐 我不敢和同学说话...",
	"💪 别人都说我笨，我是吗？",
	"😡 我好生气，想摔东西！",
	"🌙 晚上黑黑的，我好害怕",
	"🏫 我不想去上学...",
}

var questionsTeens = []string{
	"📱 总是想玩手机停不下来",
	"💔 感觉没人理解我，很孤独",
	"📚 学习压力好大，想放弃",
	"👫 怎么处理和同学的矛盾？",
	"👵 爷爷奶奶太啰嗦了，很烦",
	"🎯 我对未来很迷茫...",
}

var questionsLeftBehind = []string{
	"☎️ 爸爸妈妈是不是不爱我了？",
	"🏠 为什么别人都有爸妈接送？",
	"👵 和爷爷奶奶有代沟怎么办？",
	"🎒 想要新书包不敢跟爸妈说",
	"🤕 生病了好想妈妈...",
	"🍰 只能在电话里过生日吗？",
}

// SuggestedQuestions returns the starter questions for a tab.
func SuggestedQuestions(tab QuestionTab) []string {
	switch tab {
	case TabTeens:
		return questionsTeens
	case TabLeftBehind:
		return questionsLeftBehind
	default:
		return questionsKids
	}
}
