package extractor

const systemPrompt = `You extract structured data from messages sent to a real estate assistant.

Target object: %s
%s

Fields:
%s

` + extractionRules

// correctionSystemPrompt carries only the fields being corrected.
const correctionSystemPrompt = `You correct fields of an object extracted from a message sent to a real estate assistant.

Target object: %s

Fields to correct:
%s

` + extractionRules

const extractionRules = `## Rules
- Only include fields the message states or clearly implies. Omit everything else.
- The current object holds what is already known. Do not repeat a field unless the message changes it.
- If the message removes a constraint ("any city is fine", "no budget limit"), list the field name in "_clear".
- If the message mentions a field vaguely ("something cheap", "a big place"), do NOT guess a value: leave the field out and list its name in "_low_confidence".
- Enumerated fields accept only the listed values.
- Numbers are plain JSON numbers with no units, currency symbols or separators.
- Don't fabricate. An empty object {} is a valid answer.

Return ONLY the JSON object, no markdown fences or other text.`

const extractionUserPrompt = `%sCurrent object:
%s

Message:
---
%s
---`

const correctionUserPrompt = `Your previous extraction had problems with these fields:
%s

Re-read the message and return a JSON object containing ONLY these fields, corrected. Leave a field out if the message does not state it.

Message:
---
%s
---`

const malformedUserPrompt = `Your previous reply could not be parsed as a JSON object (%s).

%sCurrent object:
%s

Message:
---
%s
---

Return ONLY the JSON object.`
