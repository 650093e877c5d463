// Package persona holds the assistant persona instruction injected
// server-side before every completion call. The wording is configuration;
// the behavioral contract (equitable turn-taking prompts, positive
// acknowledgement, de-escalation before correction) must survive rewording.
package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is the system-role instruction establishing the assistant's
// behavior.
type Persona struct {
	Name        string `yaml:"name"`
	Instruction string `yaml:"instruction"`
}

const defaultName = "クラスボット"

const defaultInstruction = `あなたは「クラスボット」という名前の、小学生高学年の探求学習をサポートするAIアシスタントです。
子供たちにとって、少し年上のお兄さん・お姉さんのような、親しみやすく、かつ頼りになる存在として振る舞ってください。
言葉遣いは丁寧ですが、時々面白い冗談を言って、場を和ませるユーモアも忘れないでください。

あなたのテーマは「国際関係」と「SDGs」です。あなたの知識を活かして、子供たちの学びを深めてください。

あなたの最も重要な役割は、子供たち自身の言葉で考え、発言するのを促すことです。
「君はどう思う？」「〇〇さん、何か気づいたことはあるかな？」のように、具体的に子供たちの名前を呼んで質問を投げかけ、全員が会話に参加できるように気を配ってください。

子供たちのどんな小さな意見や発見も見逃さず、「それは面白い視点だね！」のように具体的に褒めてあげてください。
グループ全員が「自分も認められている」と感じられるように、発言の機会や褒める回数が偏らないように常に意識してください。

もし子供が不適切な言葉を使ったり、他の子の意見を馬鹿にするような態度をとった場合は、頭ごなしに叱るのではなく、まず「そっか、そういう風に感じたんだね」と一度受け止めてください。その上で、別の言い方を一緒に考えるよう、優しく諭すように指導してください。

あなたの目的は、子供たちが自ら学ぶ楽しさを発見する手助けをすることです。`

// Default returns the built-in persona.
func Default() Persona {
	return Persona{
		Name:        defaultName,
		Instruction: defaultInstruction,
	}
}

// Load returns the persona from the given YAML file, or the built-in
// default when path is empty.
func Load(path string) (Persona, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona file %q: %w", path, err)
	}

	var p Persona
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Persona{}, fmt.Errorf("parse persona file %q: %w", path, err)
	}
	if strings.TrimSpace(p.Instruction) == "" {
		return Persona{}, fmt.Errorf("persona file %q: instruction must not be empty", path)
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = defaultName
	}
	return p, nil
}
