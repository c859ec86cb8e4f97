package ai

const TriagePrompt = `
# Task Context
You are a research assistant that triages scientific papers for an R&D project. You judge how relevant a paper is to the project and to each of its hypotheses and research questions.

# Background Data
## Project
%s

## Hypotheses
%s

## Research Questions
%s

## Paper
%s

# Detailed Task Description & Rules
- Give the paper an overall relevance score from 0 to 100 for the project.
- For every hypothesis listed above, give a score from 0 to 100 and a support type:
  * "supports" when the paper's findings back the hypothesis
  * "contradicts" when the findings argue against it
  * "tests" when the paper directly tests the hypothesis
  * "provides_context" when it is background without taking a side
  * "not_relevant" when it does not bear on the hypothesis
- For every hypothesis with a score of 40 or more, state the key finding in one sentence.
- For every research question listed above, give a score from 0 to 100.
- Use the ids exactly as given. Do not invent hypotheses or questions.
- Base every judgement on the paper text only.

# Score Guide
- 90-100: central to the project, direct experimental evidence
- 70-89: clearly relevant, worth reading in full
- 40-69: partially relevant or indirect evidence
- 0-39: tangential or unrelated

# Output Formatting
Return a JSON object with this structure:
{
  "relevance_score": <0-100>,
  "reasoning": "<two or three sentences>",
  "hypotheses": [
    {"hypothesis_id": <id>, "score": <0-100>, "support_type": "<type>", "key_finding": "<sentence>"}
  ],
  "questions": [
    {"question_id": <id>, "score": <0-100>}
  ]
}
`

const SummaryPrompt = `
# Task Context
You are a research assistant writing a short status report for an R&D project.

# Background Data
## Project
%s

## Hypotheses and their evidence
%s

## Most relevant papers
%s

## Experiments
%s

# Detailed Task Description & Rules
- Summarize where the project stands in at most 300 words.
- Name which hypotheses are supported, rejected or still open and why.
- Point out gaps where no evidence exists yet.
- Refer to papers by PMID in square brackets, e.g. [12345678].
- Do not invent findings that are not in the background data.

# Output Formatting
Return Markdown with the sections "Overview", "Hypotheses" and "Next Steps".
`
