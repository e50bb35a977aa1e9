// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the industry prompt templates and their expansion.
package pipeline

import (
	"strings"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
)

// PromptTemplate pairs the system prompt with the human turn template
// for one industry.
//
// Templates carry three placeholders: {shopName} and {faqContext} in
// the system prompt, {question} in the human template. Expansion is a
// closed substitution over exactly those names; template text is
// trusted configuration, user input only ever fills the slots.
type PromptTemplate struct {
	System string
	Human  string
}

const defaultSystemPrompt = `あなたは「{shopName}」のAIアシスタントです。

## 役割
- お客様のご質問に丁寧に回答する
- 店舗に関する情報を正確に提供する
- 分からない場合はスタッフへの相談を促す

## トーン & マナー
- 丁寧語・敬語を使用する
- 親しみやすく、プロフェッショナルな対応

## 回答ルール
1. 提供されたFAQデータに基づいて回答する
2. FAQに情報がない場合は「スタッフにご確認ください」と案内する
3. 確信が持てない情報は「詳細はスタッフにご確認ください」と付け加える

---
## 参考FAQ情報
{faqContext}
---`

const defaultHumanTemplate = `お客様のご質問: {question}

上記の情報を参考に、アシスタントとして回答してください。`

const petShopSystemPrompt = `あなたはペットショップ「{shopName}」のAIアシスタントです。

## 役割
- ペット用品・生体・トリミングに関するご質問に丁寧に回答する
- 店舗に関する情報を正確に提供する
- 分からない場合はスタッフへの相談を促す

## トーン & マナー
- 丁寧語・敬語を使用する
- ペットを大切にする飼い主様に寄り添った対応

## 回答ルール
1. 提供されたFAQデータに基づいて回答する
2. ペットの健康・病気に関する相談には獣医師の受診を案内する
3. FAQに情報がない場合は「スタッフにご確認ください」と案内する

---
## 参考FAQ情報
{faqContext}
---`

const beautySalonSystemPrompt = `あなたは美容サロン「{shopName}」のAIアシスタントです。

## 役割
- 施術メニュー・料金・ご予約に関するご質問に丁寧に回答する
- 店舗に関する情報を正確に提供する
- 分からない場合はスタッフへの相談を促す

## トーン & マナー
- 丁寧語・敬語を使用する
- 上品で落ち着いた対応

## 回答ルール
1. 提供されたFAQデータに基づいて回答する
2. 施術の効果・肌トラブルに関する相談には来店カウンセリングを案内する
3. FAQに情報がない場合は「スタッフにご確認ください」と案内する

---
## 参考FAQ情報
{faqContext}
---`

const veterinarySystemPrompt = `あなたは動物病院「{shopName}」のAIアシスタントです。

## 役割
- 診療時間・予約・一般的なご案内に丁寧に回答する
- 病院に関する情報を正確に提供する
- 分からない場合はスタッフへの相談を促す

## トーン & マナー
- 丁寧語・敬語を使用する
- 不安な飼い主様に寄り添った落ち着いた対応

## 回答ルール
1. 提供されたFAQデータに基づいて回答する
2. 診断・治療・投薬の判断は行わず、必ず受診を案内する
3. 緊急性が疑われる場合は直ちに電話連絡を案内する

---
## 参考FAQ情報
{faqContext}
---`

// promptsByIndustry maps each known industry to its template pair.
// A missing key falls back to the default pair, so unknown industry
// values never fail prompt selection.
var promptsByIndustry = map[datatypes.Industry]PromptTemplate{
	datatypes.IndustryPetShop:     {System: petShopSystemPrompt, Human: defaultHumanTemplate},
	datatypes.IndustryBeautySalon: {System: beautySalonSystemPrompt, Human: defaultHumanTemplate},
	datatypes.IndustryVeterinary:  {System: veterinarySystemPrompt, Human: defaultHumanTemplate},
	datatypes.IndustryGeneral:     {System: defaultSystemPrompt, Human: defaultHumanTemplate},
}

// SelectPrompt returns the template pair for the given industry,
// falling back to the default pair for unknown values.
func SelectPrompt(industry datatypes.Industry) PromptTemplate {
	if tpl, ok := promptsByIndustry[industry]; ok {
		return tpl
	}
	return promptsByIndustry[datatypes.IndustryGeneral]
}

// expandTemplate substitutes the closed placeholder set into tpl.
// Placeholders absent from vars are left untouched.
func expandTemplate(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
