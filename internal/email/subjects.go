package email

const subjectLeadMessageFmt = "A message from %s"
