package prompt

import (
	"fmt"
	"strings"
)

// ChatSystemPrompt is the system instruction for the conversational
// counselor persona (康康老师).
const ChatSystemPrompt = `你是一位专业的乡村留守儿童心理辅导助手，名叫"康康老师"。
你的目标是为乡村教师和儿童提供温暖、专业、易懂的心理支持。
特点：温暖、耐心、富有同理心。
针对留守儿童常见的：分离焦虑、自卑、隔代教育矛盾等问题提供具体建议。

【重要排版要求】：
1. 请不要输出一大段密集的文字。
2. 每一个观点或建议之间，必须换行，并空出一行，形成清晰的段落。
3. 适当使用Emoji表情符号增加亲和力。
4. 语气要像讲故事一样娓娓道来。`

// imageQualifiers are appended to every image prompt regardless of style.
const imageQualifiers = "bright colors, happy atmosphere, highly detailed, kid friendly, cute, 8k resolution"

// sketchPreamble instructs the image model to treat the inline payload as a
// line drawing to elaborate, not as a finished picture.
const sketchPreamble = "Based on this sketch, generate a high-quality, beautiful artistic image. "

// DefaultSketchHint is used when the user provides no text alongside a sketch.
const DefaultSketchHint = "Colorful, artistic interpretation of this sketch"

// EnhanceImagePrompt combines the user's raw prompt with a style descriptor
// and the fixed quality/mood qualifiers.
func EnhanceImagePrompt(raw, style string) string {
	return fmt.Sprintf("%s, %s style, %s", raw, style, imageQualifiers)
}

// SketchImagePrompt builds the text part of a sketch-to-image request.
func SketchImagePrompt(enhanced string) string {
	if enhanced == "" {
		enhanced = DefaultSketchHint
	}
	return sketchPreamble + enhanced
}

// AssessmentRequest carries the fields interpolated into the assessment prompt.
type AssessmentRequest struct {
	ChildName   string
	ChildAge    int
	ChildGender string
	Sleep       string
	Electronics string
	PeerRel     string
	Concerns    []string
	Notes       string
	Details     string
}

// BuildAssessmentPrompt renders the psychological assessment request.
func BuildAssessmentPrompt(r AssessmentRequest) string {
	return fmt.Sprintf(`作为资深儿童心理专家，请根据以下留守儿童的评估数据生成一份详细的分析报告：

基本信息：%s (%d岁, %s)
生活习惯：睡眠-%s, 电子产品-%s
社交与困扰：同伴关系-%s, 困扰-%s
简要备注：%s
**详细情况描述**：%s

请包含：
1. 🎯 **心理状态总体评估** (给出风险等级：低/中/高)
2. 🔍 **潜在问题深度分析** (结合详细描述，分析留守背景下的心理成因)
3. 💡 **针对性的干预建议** (分别给老师、家长/监护人、孩子的具体行动建议)

排版要求：分段清晰，重点突出，语气温暖专业。`,
		r.ChildName, r.ChildAge, r.ChildGender,
		r.Sleep, r.Electronics,
		r.PeerRel, strings.Join(r.Concerns, ", "),
		r.Notes, r.Details)
}

// StoryRequest carries the story generation parameters.
type StoryRequest struct {
	Keywords string
	AgeGroup string
	Length   string // "short", "long", or anything else for the standard length
	Tone     string // "adventure", "happy", "brave", or anything else for warm
}

func lengthInstruction(length string) string {
	switch length {
	case "short":
		return "目标字数约300-500字。故事要短小精悍，节奏轻快。"
	case "long":
		return "目标字数约1500字。这是一个长篇故事，需要有宏大的世界观、复杂的起承转合。"
	default:
		return "目标字数约800-1000字。标准中篇故事，情节完整。"
	}
}

func toneInstruction(tone string) string {
	switch tone {
	case "adventure":
		return "情感基调：【奇幻冒险】。充满想象力、惊险刺激。"
	case "happy":
		return "情感基调：【欢乐有趣】。幽默风趣，结局皆大欢喜。"
	case "brave":
		return "情感基调：【勇敢励志】。刻画主角克服恐惧。"
	default:
		return "情感基调：【温馨治愈】。柔和、温暖，重点描写亲情或友情。"
	}
}

// BuildStoryPrompt renders the story request, including the plain-text
// output contract the narrative parser relies on.
func BuildStoryPrompt(r StoryRequest) string {
	return fmt.Sprintf(`你是一位著名的儿童文学作家。请根据以下要求创作一个故事。

关键词: "%s"
适用年龄: %s

要求：
1. %s
2. %s
3. 必须包含具体的环境描写和细腻的心理活动描写。
4. 包含人物对话。
5. 寓教于乐。

请按以下纯文本格式返回：
标题：[标题]

[故事内容]

---
故事里的小道理：
1. [道理1]
2. [道理2]
`, r.Keywords, r.AgeGroup, lengthInstruction(r.Length), toneInstruction(r.Tone))
}
