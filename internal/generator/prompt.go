package generator

import "strings"

const promptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{context}

Question: {question}
Helpful Answer:`

// BuildPrompt stuffs the retrieved passages and the question into one prompt.
// An empty context still yields a well-formed prompt.
func BuildPrompt(context []string, question string) string {
	r := strings.NewReplacer("{context}", strings.Join(context, "\n\n"), "{question}", question)
	return r.Replace(promptTemplate)
}
