package agent

// Prompt texts sent to the completion service. The shape is what matters:
// the planner contract is a bare JSON array, the classifier and grader
// contracts are single-token answers, and the callers tolerate deviation.

const plannerPrompt = `You are an expert technical planner for a CLI agent.
Your goal is to break down a high-level user objective into a series of safe, executable atomic steps.

Analyze the user's request and the current state.
Generate a JSON plan where each item is a step.

Each step MUST have:
- id: unique string (e.g., "step_1")
- description: clear explanation of what we are doing
- command: the exact shell command to run (or empty if it's a manual/thought step)
- risk_level: "LOW" (read-only), "MEDIUM" (creates files), "HIGH" (modifies/deletes), "CRITICAL" (system changes)

OUTPUT FORMAT:
Return a JSON array of objects. Do not wrap in markdown code blocks.
Example:
[
  {"id": "1", "description": "List files", "command": "ls -la", "risk_level": "LOW", "status": "pending"},
  {"id": "2", "description": "Read file", "command": "cat README.md", "risk_level": "LOW", "status": "pending"}
]`

const draftInstruction = "Generate a plan for the above request."

const classifyPromptFmt = `Classify the following user request into one of these categories:
- EXECUTE: The user wants to perform an action (create files, run commands, edit code).
- RESEARCH: The user is asking a question that requires web search or external knowledge.
- CHAT: The user is saying hello, asking a clarification, or chatting casually.

Request: %s

Return ONLY the category name.`

const refinePromptFmt = `The user rejected the previous plan.
Current Plan: %s
User Feedback: %s

Update the plan accordingly. Return the full updated JSON array.`

const condensePromptFmt = `Extract a concise search query from this: %s`

const gradePromptFmt = `User Request: %s
Research Result: %s

Does the research result contain enough information to answer the request?
Return 'YES' or 'NO'.`

const draftAnswerPromptFmt = `You are a researcher. Answer the user's request based strictly on the following research.

Research:
%s

User Request: %s`
