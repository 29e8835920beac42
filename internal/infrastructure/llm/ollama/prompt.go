package ollama

import "fmt"

func buildGroundedPrompt(question, contextText string) string {
	return fmt.Sprintf(`Eres un asistente que responde preguntas sobre un documento de politicas.
Responde UNICAMENTE con la informacion del contexto siguiente.
Si el contexto no contiene la respuesta, dilo directamente.
Responde en el idioma de la pregunta y cita la seccion entre corchetes cuando sea posible.

Pregunta:
%s

Contexto:
%s
`, question, contextText)
}

func buildGeneralPrompt(question string) string {
	return fmt.Sprintf(`Eres un asistente. La pregunta siguiente NO esta cubierta por el documento
de politicas cargado, asi que responde con conocimiento general, de forma
breve y prudente. No inventes contenido del documento.

Pregunta:
%s
`, question)
}
