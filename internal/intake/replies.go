package intake

import (
	"fmt"
	"strings"
	"time"

	"github.com/lawjfmiranda/jurbot1/internal/qualification"
	"github.com/lawjfmiranda/jurbot1/internal/scheduling"
)

// User-facing reply texts. All outbound copy lives here so the engine logic
// stays free of string building.

const (
	replyPausedNotice = "⏸️ Nosso atendimento automático está temporariamente pausado. " +
		"Em breve retomaremos, obrigado pela compreensão!"

	replyRateLimited = "Você enviou muitas mensagens em pouco tempo. " +
		"Aguarde um instante e tente novamente. 🙏"

	replyNameInvalid = "Não consegui entender seu nome. Pode me dizer seu nome completo?"

	replyAskPeriod = "Você prefere ser atendido(a) de *manhã* ou de *tarde*?\n" +
		"1️⃣ Manhã\n2️⃣ Tarde\n3️⃣ Qualquer horário"

	replyPeriodInvalid = "Só para confirmar: prefere *manhã*, *tarde* ou *qualquer horário*?"

	replyNoSlots = "Poxa, não encontrei horários livres nesse dia. 😕 " +
		"Pode escolher outra data da lista?"

	replyConfirmInvalid = "Para confirmar o agendamento responda *sim*. " +
		"Para escolher outro horário responda *não*."

	replySlotTaken = "Esse horário acabou de ser reservado por outra pessoa. 😕"

	replyHoldExpired = "Sua reserva expirou antes da confirmação. " +
		"Vamos escolher um novo horário:"

	replyBookingFailed = "Tive um problema ao registrar seu agendamento na nossa agenda. 😕 " +
		"Vamos tentar outro horário:"

	replyCancelled = "Sem problemas, agendamento cancelado. " +
		"Quando quiser marcar uma consulta é só me avisar! 😊"

	replyNothingToCancel = "Você não tem nenhum agendamento em andamento. " +
		"Se quiser marcar uma consulta é só dizer *agendar*."

	urgencyMarker = "⚠️ Entendi, sua situação requer atenção. Vou priorizar seu caso.\n\n"
)

var weekdaysPT = map[time.Weekday]string{
	time.Monday:    "Segunda",
	time.Tuesday:   "Terça",
	time.Wednesday: "Quarta",
	time.Thursday:  "Quinta",
	time.Friday:    "Sexta",
	time.Saturday:  "Sábado",
	time.Sunday:    "Domingo",
}

func replyGreeting(categories []string) string {
	var b strings.Builder
	b.WriteString("Olá! 👋 Sou o assistente virtual do escritório. ")
	b.WriteString("Para te direcionar ao atendimento certo, me conte brevemente o que aconteceu.\n\n")
	b.WriteString("Atendemos principalmente:\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "• %s\n", c)
	}
	return strings.TrimRight(b.String(), "\n")
}

func replyCategoryIntro(category string, first qualification.Question) string {
	return fmt.Sprintf("Entendi, seu caso parece ser de *%s*. "+
		"Vou fazer algumas perguntas rápidas para agilizar seu atendimento.\n\n%s",
		category, renderQuestion(first))
}

func renderQuestion(q qualification.Question) string {
	if len(q.Options) == 0 {
		return q.Prompt
	}
	var b strings.Builder
	b.WriteString(q.Prompt)
	b.WriteString("\n")
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "%d️⃣ %s\n", i+1, opt)
	}
	return strings.TrimRight(b.String(), "\n")
}

func replyAnswerInvalid(q qualification.Question) string {
	return "Não consegui entender sua resposta. " + renderQuestion(q)
}

func replyQualified(urgent bool) string {
	reply := "Obrigado pelas informações! ✅ Já encaminhei seu caso para nossa equipe.\n\n" +
		"Quer *agendar* uma consulta com o advogado? É só responder *sim* ou *agendar*."
	if urgent {
		reply = urgencyMarker + reply
	}
	return reply
}

func replyOfferScheduling() string {
	return "Se quiser marcar uma consulta com o advogado, responda *agendar*. 😊"
}

func replyAskName() string {
	return "Perfeito! Para agendar, me diga seu *nome completo*, por favor."
}

func replyDates(dates []time.Time) string {
	var b strings.Builder
	b.WriteString("Tenho estas datas disponíveis. Qual prefere?\n")
	for i, d := range dates {
		fmt.Fprintf(&b, "%d️⃣ %s, %s\n", i+1, weekdaysPT[d.Weekday()], d.Format("02/01"))
	}
	b.WriteString("\nResponda com o número da opção.")
	return b.String()
}

func replyDateInvalid(dates []time.Time) string {
	return "Não entendi a data escolhida. " + replyDates(dates)
}

func replySlots(slots []scheduling.Interval) string {
	var b strings.Builder
	b.WriteString("Estes horários estão livres:\n")
	for i, iv := range slots {
		fmt.Fprintf(&b, "%d️⃣ %s às %s\n", i+1, iv.Start.Format("02/01"), iv.Start.Format("15:04"))
	}
	b.WriteString("\nResponda com o número da opção.")
	return b.String()
}

func replySlotInvalid(slots []scheduling.Interval) string {
	return "Não entendi o horário escolhido. " + replySlots(slots)
}

func replyConfirm(iv scheduling.Interval) string {
	return fmt.Sprintf("Posso confirmar sua consulta para *%s, %s às %s*?\n"+
		"Responda *sim* para confirmar ou *não* para escolher outro horário.",
		weekdaysPT[iv.Start.Weekday()], iv.Start.Format("02/01"), iv.Start.Format("15:04"))
}

func replyBooked(name string, iv scheduling.Interval) string {
	first := strings.Fields(name)
	display := name
	if len(first) > 0 {
		display = first[0]
	}
	return fmt.Sprintf("Agendado, %s! ✅ Sua consulta ficou para *%s, %s às %s*.\n"+
		"Você receberá um lembrete um dia antes. Até lá! 😊",
		display, weekdaysPT[iv.Start.Weekday()], iv.Start.Format("02/01"), iv.Start.Format("15:04"))
}
